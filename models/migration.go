package models

import (
	"log"

	"bitbucket.org/storeline/retail_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Owner{}, &User{}, &Role{},
		&Product{}, &Supplier{}, &Customer{},
		&OrderHistory{}, &OrderDetailHistory{}, &LoggingOrder{},
		&Bill{}, &BillItem{}, &Event{},
		&ProductChangeHistory{}, &SupplierChangeHistory{}, &CustomerChangeHistory{},
		&EmailOutboxRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
