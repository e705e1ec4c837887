package domain

import (
	"fmt"
	"strings"
	"time"
)

// BuildEmbeddingText renders a product snapshot into the single descriptive
// string that gets embedded. It is a pure function of the snapshot: the same
// product always yields the same text, so (given a stable oracle) the same
// vector. The text is never shown to users.
func BuildEmbeddingText(p Product, today time.Time) string {
	parts := []string{fmt.Sprintf("Producto: %s", p.Name)}

	if p.Description != "" {
		parts = append(parts, fmt.Sprintf("Descripción: %s", p.Description))
	}

	parts = append(parts, fmt.Sprintf("Categoría: %s", p.Category.Name))
	if p.Category.Description != "" {
		parts = append(parts, fmt.Sprintf("Descripción de categoría: %s", p.Category.Description))
	}

	parts = append(parts,
		fmt.Sprintf("Precio actual: $%.2f", p.CurrentPrice),
		fmt.Sprintf("Lista de precios: %s", p.PriceListName),
	)

	if active := p.ActivePromotions(today); len(active) > 0 {
		promoTexts := make([]string, 0, len(active))
		for _, promo := range active {
			text := fmt.Sprintf("%s - %g%% descuento", promo.Name, promo.DiscountPercent)
			if promo.Description != "" {
				text += " - " + promo.Description
			}
			promoTexts = append(promoTexts, text)
		}
		parts = append(parts, "Promociones activas: "+strings.Join(promoTexts, "; "))
	}

	var imgDescriptions []string
	for _, img := range p.Images {
		if img.Description != "" {
			imgDescriptions = append(imgDescriptions, img.Description)
		}
	}
	if len(imgDescriptions) > 0 {
		parts = append(parts, "Imágenes: "+strings.Join(imgDescriptions, "; "))
	}

	return strings.Join(parts, " | ")
}

// DisplayData extracts the denormalized copy of the product stored alongside
// its vector.
func (p Product) DisplayData() ProductData {
	return ProductData{
		Name:         p.Name,
		Description:  p.Description,
		CategoryID:   p.Category.ID,
		CategoryName: p.Category.Name,
		CurrentPrice: p.CurrentPrice,
		Promotions:   p.Promotions,
		Images:       p.Images,
	}
}
