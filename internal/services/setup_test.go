package services

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	appdb "github.com/ateliermtl/studio-billing/internal/db"
	"github.com/ateliermtl/studio-billing/internal/models"
)

// Use a small epsilon for floating point comparison
func almostEqual(a, b float64) bool {
	d := a - b
	return d < 0.001 && d > -0.001
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := appdb.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

// seedQuote creates a draft quote with one fixed item (2 × 100), Québec tax
// rates and a 50% deposit. Stored totals: subtotal 200, total 229.95.
func seedQuote(t *testing.T, conn *gorm.DB) *models.Quote {
	t.Helper()
	svc := NewQuoteService(conn)
	q := &models.Quote{
		Title:          "Brand refresh",
		ClientName:     "Studio client",
		TPSRate:        0.05,
		TVQRate:        0.09975,
		DepositPercent: 50,
		Sections: []models.QuoteSection{{
			Title: "Design",
			Items: []models.QuoteItem{{
				Name:           "Logo design",
				ItemTypes:      models.NewItemTypeSet(models.ItemTypeService),
				BillingMode:    models.BillingModeFixed,
				Quantity:       2,
				UnitPrice:      100,
				IncludeInTotal: true,
				IsSelected:     true,
			}},
		}},
	}
	if err := svc.Create(q); err != nil {
		t.Fatalf("create quote: %v", err)
	}
	return q
}

// seedAcceptedQuote creates an accepted tax-free quote whose total is exactly
// 1000, ready for invoicing.
func seedAcceptedQuote(t *testing.T, conn *gorm.DB) *models.Quote {
	t.Helper()
	svc := NewQuoteService(conn)
	q := &models.Quote{
		Title:          "Site build",
		DepositPercent: 50,
		Sections: []models.QuoteSection{{
			Title: "Development",
			Items: []models.QuoteItem{{
				Name:           "Implementation",
				ItemTypes:      models.NewItemTypeSet(models.ItemTypeService),
				BillingMode:    models.BillingModeFixed,
				Quantity:       1,
				UnitPrice:      1000,
				IncludeInTotal: true,
				IsSelected:     true,
			}},
		}},
	}
	if err := svc.Create(q); err != nil {
		t.Fatalf("create quote: %v", err)
	}
	if err := conn.Model(&models.Quote{}).Where("id = ?", q.ID).
		Update("status", models.QuoteStatusAccepted).Error; err != nil {
		t.Fatalf("accept quote: %v", err)
	}
	q.Status = models.QuoteStatusAccepted
	return q
}
