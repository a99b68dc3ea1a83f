package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/storeline/retail_backend/config"
	"bitbucket.org/storeline/retail_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type SalesByCustomerRow struct {
	CustomerId    *int            `json:"customer_id"`
	CustomerName  *string         `json:"customer_name"`
	CustomerPhone *string         `json:"customer_phone"`
	BillCount     int             `json:"bill_count"`
	TotalSales    decimal.Decimal `json:"total_sales"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	LastSaleDate  time.Time       `json:"last_sale_date"`
}

// GetSalesByCustomerReport aggregates bills per customer in the date range.
// Walk-in sales (no customer) come back as one row with a NULL customer.
func GetSalesByCustomerReport(ctx context.Context, ownerId string, from time.Time, to time.Time) ([]*SalesByCustomerRow, error) {

	sql := `
SELECT
    b.customer_id,
    customers.name AS customer_name,
    customers.phone AS customer_phone,
    b.bill_count,
    b.total_sales,
    b.total_discount,
    b.last_sale_date
FROM
    (
        SELECT
            customer_id,
            COUNT(bills.id) AS bill_count,
            SUM(total_amount) AS total_sales,
            SUM(discount) AS total_discount,
            MAX(order_date) AS last_sale_date
        FROM
            bills
        WHERE
            owner_id = ? AND order_date >= ? AND order_date <= ?
        GROUP BY
            customer_id
    ) AS b
    LEFT JOIN customers ON customers.id = b.customer_id
ORDER BY
    b.total_sales DESC;
`

	var records []*SalesByCustomerRow
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, ownerId, from, to).Scan(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// BuildSalesWorkbook renders the per-customer sales summary as an xlsx
// workbook. The caller streams it to the response.
func BuildSalesWorkbook(ctx context.Context, ownerId string, from time.Time, to time.Time) (*excelize.File, error) {

	data, err := GetSalesByCustomerReport(ctx, ownerId, from, to)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := "Sheet1"

	f.SetCellValue(sheet, "A1", "CustomerName")
	f.SetCellValue(sheet, "B1", "CustomerPhone")
	f.SetCellValue(sheet, "C1", "BillCount")
	f.SetCellValue(sheet, "D1", "TotalSales")
	f.SetCellValue(sheet, "E1", "TotalDiscount")
	f.SetCellValue(sheet, "F1", "LastSaleDate")

	for i, d := range data {
		row := fmt.Sprint(i + 2)
		name := "Walk-in"
		if d.CustomerName != nil {
			name = *d.CustomerName
		}
		phone := ""
		if d.CustomerPhone != nil {
			phone = *d.CustomerPhone
		}
		f.SetCellValue(sheet, "A"+row, name)
		f.SetCellValue(sheet, "B"+row, phone)
		f.SetCellValue(sheet, "C"+row, d.BillCount)
		f.SetCellValue(sheet, "D"+row, utils.FormatMoney(d.TotalSales))
		f.SetCellValue(sheet, "E"+row, utils.FormatMoney(d.TotalDiscount))
		f.SetCellValue(sheet, "F"+row, d.LastSaleDate.Format("2006-01-02"))
	}

	return f, nil
}
