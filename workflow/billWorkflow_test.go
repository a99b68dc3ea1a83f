package workflow

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeBillTotal(t *testing.T) {
	cases := []struct {
		name     string
		items    []billItem
		discount decimal.Decimal
		vat      decimal.Decimal
		want     string
	}{
		{
			name:     "single item no extras",
			items:    []billItem{{Quantity: 2, Price: dec("5000")}},
			discount: decimal.Zero,
			vat:      decimal.Zero,
			want:     "10000",
		},
		{
			name: "item discounts subtract before vat",
			items: []billItem{
				{Quantity: 1, Price: dec("10000"), Discount: dec("1000")},
			},
			discount: decimal.Zero,
			vat:      dec("10"),
			want:     "9900",
		},
		{
			name: "bill discount then vat, floored",
			items: []billItem{
				{Quantity: 3, Price: dec("333")},
			},
			discount: dec("100"),
			vat:      dec("5"),
			// (999 - 100) * 1.05 = 943.95 -> 943
			want: "943",
		},
		{
			name:     "discount above subtotal clamps at zero",
			items:    []billItem{{Quantity: 1, Price: dec("1000")}},
			discount: dec("5000"),
			vat:      decimal.Zero,
			want:     "0",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeBillTotal(tc.items, tc.discount, tc.vat)
			if got.String() != tc.want {
				t.Fatalf("got %s, want %s", got.String(), tc.want)
			}
		})
	}
}

func TestValidateBillAmounts(t *testing.T) {
	cases := []struct {
		name     string
		items    []billItem
		discount decimal.Decimal
		wantErr  bool
	}{
		{
			name:     "discount equal to subtotal is allowed",
			items:    []billItem{{ProductId: 1, Quantity: 2, Price: dec("500")}},
			discount: dec("1000"),
		},
		{
			name:     "bill discount above subtotal is rejected",
			items:    []billItem{{ProductId: 1, Quantity: 1, Price: dec("1000")}},
			discount: dec("5000"),
			wantErr:  true,
		},
		{
			name: "line discount above line total is rejected",
			items: []billItem{
				{ProductId: 7, Quantity: 1, Price: dec("1000"), Discount: dec("1500")},
			},
			discount: decimal.Zero,
			wantErr:  true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateBillAmounts(tc.items, tc.discount)
			if tc.wantErr && err == nil {
				t.Fatal("expected an error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestUpdateOrderHistoryRejectsInvalidStatus(t *testing.T) {
	actor := Actor{OwnerId: "owner", UserId: 1}
	ctx := context.Background()
	_, err := UpdateOrderHistory(ctx, actor, &UpdateOrderRequest{OrderId: 1, Status: "pending"})
	if err == nil {
		t.Fatal("pending is not a valid target status")
	}
	_, err = UpdateOrderHistory(ctx, actor, &UpdateOrderRequest{OrderId: 1, Status: "nonsense"})
	if err == nil {
		t.Fatal("unknown status should be rejected")
	}
}

func TestUpdateOrderHistoryRejectsMalformedSnapshotFields(t *testing.T) {
	actor := Actor{OwnerId: "owner", UserId: 1}
	ctx := context.Background()
	_, err := UpdateOrderHistory(ctx, actor, &UpdateOrderRequest{OrderId: 1, Status: "deliveried", Total: "12x00"})
	if err == nil {
		t.Fatal("malformed total should be rejected")
	}
	_, err = UpdateOrderHistory(ctx, actor, &UpdateOrderRequest{OrderId: 1, Status: "deliveried", Tax: "five"})
	if err == nil {
		t.Fatal("malformed tax should be rejected")
	}
}
