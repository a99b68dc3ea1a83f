package workflow

import (
	"strings"
	"testing"

	"bitbucket.org/storeline/retail_backend/models"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeGeneralStatus(t *testing.T) {
	cases := []struct {
		name  string
		lines []parsedLine
		want  models.OrderStatus
	}{
		{
			name: "all delivered",
			lines: []parsedLine{
				{Status: models.OrderDetailStatusDeliveried},
				{Status: models.OrderDetailStatusDeliveried},
			},
			want: models.OrderStatusDeliveried,
		},
		{
			name: "one pending wins",
			lines: []parsedLine{
				{Status: models.OrderDetailStatusDeliveried},
				{Status: models.OrderDetailStatusPending},
			},
			want: models.OrderStatusPending,
		},
		{
			name: "all pending",
			lines: []parsedLine{
				{Status: models.OrderDetailStatusPending},
			},
			want: models.OrderStatusPending,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeGeneralStatus(tc.lines)
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestComputeOrderAmount(t *testing.T) {
	cases := []struct {
		name  string
		lines []parsedLine
		tax   decimal.Decimal
		want  string
	}{
		{
			name:  "no tax",
			lines: []parsedLine{{Price: dec("1000"), Quantity: 3}},
			tax:   decimal.Zero,
			want:  "3000",
		},
		{
			name:  "tax applied per line",
			lines: []parsedLine{{Price: dec("1000"), Quantity: 2}},
			tax:   dec("10"),
			want:  "2200",
		},
		{
			name: "each line floored before summing",
			// 333 * 1 * 1.05 = 349.65 -> 349, twice = 698 (not floor(699.3))
			lines: []parsedLine{
				{Price: dec("333"), Quantity: 1},
				{Price: dec("333"), Quantity: 1},
			},
			tax:  dec("5"),
			want: "698",
		},
		{
			name: "mixed lines",
			lines: []parsedLine{
				{Price: dec("1500"), Quantity: 2},
				{Price: dec("250"), Quantity: 4},
			},
			tax:  dec("7"),
			want: "4280",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeOrderAmount(tc.lines, tc.tax)
			if got.String() != tc.want {
				t.Fatalf("got %s, want %s", got.String(), tc.want)
			}
		})
	}
}

func TestRenderSupplierEmailUsesSavedOrderId(t *testing.T) {
	lines := []parsedLine{
		{ProductId: 7, Price: dec("12000"), Quantity: 3},
	}
	subject, body := RenderSupplierEmail("Golden Fields Co", 42, lines, "buyer@store.example")

	if subject != "Purchase order #42" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "Golden Fields Co") {
		t.Fatalf("body missing supplier name: %q", body)
	}
	if !strings.Contains(body, "order #42") {
		t.Fatalf("body missing order id: %q", body)
	}
	if !strings.Contains(body, "3 x 12.000") {
		t.Fatalf("body missing formatted line: %q", body)
	}
	if !strings.Contains(body, "buyer@store.example") {
		t.Fatalf("body missing requester contact: %q", body)
	}
}

func TestParseLineStatus(t *testing.T) {
	if s, err := parseLineStatus(""); err != nil || s != models.OrderDetailStatusPending {
		t.Fatalf("empty status should default to pending, got %q err=%v", s, err)
	}
	if s, err := parseLineStatus("deliveried"); err != nil || s != models.OrderDetailStatusDeliveried {
		t.Fatalf("got %q err=%v", s, err)
	}
	if _, err := parseLineStatus("canceled"); err == nil {
		t.Fatal("new lines cannot arrive canceled")
	}
	if _, err := parseLineStatus("bogus"); err == nil {
		t.Fatal("unknown status should be rejected")
	}
}
