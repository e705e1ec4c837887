package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testToday = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func fullProduct() Product {
	return Product{
		ID:          7,
		Name:        "Cien años de soledad",
		Description: "Novela de Gabriel García Márquez",
		Category: Category{
			ID:          2,
			Name:        "Novela",
			Description: "Ficción literaria",
		},
		CurrentPrice:  120.0,
		PriceListName: "Lista general",
		Active:        true,
		Promotions: []Promotion{
			{
				ID:              1,
				Name:            "Semana del libro",
				Description:     "Descuento especial",
				StartDate:       testToday.AddDate(0, 0, -3),
				EndDate:         testToday.AddDate(0, 0, 3),
				DiscountPercent: 15,
			},
		},
		Images: []ProductImage{
			{URL: "http://img/1.jpg", Description: "Portada del libro"},
			{URL: "http://img/2.jpg"},
		},
	}
}

func TestBuildEmbeddingTextDeterminism(t *testing.T) {
	p := fullProduct()
	assert.Equal(t, BuildEmbeddingText(p, testToday), BuildEmbeddingText(p, testToday))
}

func TestBuildEmbeddingTextFullProduct(t *testing.T) {
	got := BuildEmbeddingText(fullProduct(), testToday)

	want := "Producto: Cien años de soledad" +
		" | Descripción: Novela de Gabriel García Márquez" +
		" | Categoría: Novela" +
		" | Descripción de categoría: Ficción literaria" +
		" | Precio actual: $120.00" +
		" | Lista de precios: Lista general" +
		" | Promociones activas: Semana del libro - 15% descuento - Descuento especial" +
		" | Imágenes: Portada del libro"
	assert.Equal(t, want, got)
}

func TestBuildEmbeddingTextSkipsAbsentFields(t *testing.T) {
	p := Product{
		ID:            3,
		Name:          "Sudoku",
		Category:      Category{ID: 5, Name: "Pasatiempos"},
		CurrentPrice:  9.5,
		PriceListName: "Lista general",
	}

	got := BuildEmbeddingText(p, testToday)

	want := "Producto: Sudoku | Categoría: Pasatiempos | Precio actual: $9.50 | Lista de precios: Lista general"
	assert.Equal(t, want, got)
	assert.NotContains(t, got, "Descripción")
	assert.NotContains(t, got, "Promociones")
	assert.NotContains(t, got, "Imágenes")
}

func TestBuildEmbeddingTextSkipsExpiredPromotions(t *testing.T) {
	p := fullProduct()
	p.Promotions[0].EndDate = testToday.AddDate(0, 0, -1)

	got := BuildEmbeddingText(p, testToday)
	assert.NotContains(t, got, "Promociones activas")
}

func TestBuildEmbeddingTextMultiplePromotions(t *testing.T) {
	p := fullProduct()
	p.Promotions = append(p.Promotions, Promotion{
		ID:              2,
		Name:            "2x1",
		StartDate:       testToday.AddDate(0, 0, -10),
		DiscountPercent: 50,
	})

	got := BuildEmbeddingText(p, testToday)
	assert.Contains(t, got, "Semana del libro - 15% descuento - Descuento especial; 2x1 - 50% descuento")
}

func TestResolveCurrentPricePicksValidEntry(t *testing.T) {
	p := Product{
		Prices: []PriceEntry{
			{
				PriceListName: "Lista vieja",
				Value:         80,
				StartDate:     testToday.AddDate(-1, 0, 0),
				EndDate:       testToday.AddDate(0, -1, 0),
			},
			{
				PriceListName: "Lista vigente",
				Value:         120,
				StartDate:     testToday.AddDate(0, 0, -5),
			},
		},
	}

	p.ResolveCurrentPrice(testToday)

	assert.Equal(t, 120.0, p.CurrentPrice)
	assert.Equal(t, "Lista vigente", p.PriceListName)
}

func TestResolveCurrentPriceFallsBackToFirstKnown(t *testing.T) {
	p := Product{
		Prices: []PriceEntry{
			{
				PriceListName: "Lista vencida",
				Value:         80,
				StartDate:     testToday.AddDate(-1, 0, 0),
				EndDate:       testToday.AddDate(0, -6, 0),
			},
			{
				PriceListName: "Lista futura",
				Value:         150,
				StartDate:     testToday.AddDate(0, 1, 0),
			},
		},
	}

	p.ResolveCurrentPrice(testToday)

	assert.Equal(t, 80.0, p.CurrentPrice)
	assert.Equal(t, "Lista vencida", p.PriceListName)
}

func TestResolveCurrentPriceNoEntries(t *testing.T) {
	p := Product{CurrentPrice: 42, PriceListName: "manual"}
	p.ResolveCurrentPrice(testToday)
	assert.Equal(t, 42.0, p.CurrentPrice)
	assert.Equal(t, "manual", p.PriceListName)
}
