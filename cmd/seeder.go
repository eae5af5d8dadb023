package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample orders and claims for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		db, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: sqlDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		if clearData {
			for _, table := range []string{"notification_logs", "transaction_verifications", "sms_transactions", "orders"} {
				if err := db.Exec("TRUNCATE TABLE " + table + " CASCADE").Error; err != nil {
					log.Fatalf("failed to truncate %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		orders := []struct {
			ID      string
			Phone   string
			Amount  string
			Gateway string
		}{
			{"ORD-1001", "01712345678", "500.00", "bkash"},
			{"ORD-1002", "01898765432", "1250.50", "nagad"},
			{"ORD-1003", "01911223344", "780.00", "rocket"},
			{"ORD-1004", "01755667788", "2300.00", "cod"},
		}

		for _, o := range orders {
			var exists int
			row := db.Raw("SELECT 1 FROM orders WHERE id = ?", o.ID).Row()
			if err := row.Scan(&exists); err == nil {
				continue
			}

			if err := db.Exec("INSERT INTO orders (id, customer_phone, total_amount, payment_gateway, payment_status, created_at, updated_at) VALUES (?, ?, ?, ?, 'awaiting_payment', now(), now())", o.ID, o.Phone, o.Amount, o.Gateway).Error; err != nil {
				log.Fatalf("failed to insert order %s: %v", o.ID, err)
			}
			fmt.Printf("Seeded order: %s (%s Tk %s)\n", o.ID, o.Gateway, o.Amount)
		}

		// one pending claim so the claim-first path can be exercised by hand
		claimID := "seed-claim-0001"
		var exists int
		if err := db.Raw("SELECT 1 FROM transaction_verifications WHERE id = ?", claimID).Row().Scan(&exists); err != nil {
			if err := db.Exec("INSERT INTO transaction_verifications (id, order_id, payment_gateway, transaction_id, amount, status, created_at, updated_at) VALUES (?, 'ORD-1001', 'bkash', 'CI131K7A2D', '500.00', 'pending', now(), now())", claimID).Error; err != nil {
				log.Fatalf("failed to insert sample claim: %v", err)
			}
			fmt.Println("Seeded pending claim for order ORD-1001")
		}

		fmt.Println("Sample data seeded successfully")
	},
}
