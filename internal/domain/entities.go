package domain

import "time"

// Product is an immutable catalog snapshot used for embedding and retrieval.
type Product struct {
	ID            int            `json:"id"`
	Name          string         `json:"nombre"`
	Description   string         `json:"descripcion"`
	Category      Category       `json:"categoria"`
	CurrentPrice  float64        `json:"precio_actual"`
	PriceListName string         `json:"lista_precios"`
	Active        bool           `json:"activo"`
	Prices        []PriceEntry   `json:"precios,omitempty"`
	Promotions    []Promotion    `json:"promociones,omitempty"`
	Images        []ProductImage `json:"imagenes,omitempty"`
}

type Category struct {
	ID          int    `json:"id"`
	Name        string `json:"nombre"`
	Description string `json:"descripcion,omitempty"`
}

type Promotion struct {
	ID              int       `json:"id"`
	Name            string    `json:"nombre"`
	Description     string    `json:"descripcion,omitempty"`
	StartDate       time.Time `json:"fecha_inicio"`
	EndDate         time.Time `json:"fecha_fin,omitempty"` // zero value means open-ended
	DiscountPercent float64   `json:"descuento_porcentaje"`
}

// ActiveOn reports whether the promotion is in effect on the given date.
func (p Promotion) ActiveOn(date time.Time) bool {
	if date.Before(p.StartDate) {
		return false
	}
	return p.EndDate.IsZero() || !date.After(p.EndDate)
}

type ProductImage struct {
	URL         string `json:"url"`
	Description string `json:"descripcion,omitempty"`
}

// PriceEntry is one price-list row for a product. A product may carry several
// entries with different validity ranges; ResolveCurrentPrice picks one.
type PriceEntry struct {
	PriceListName string    `json:"lista_precios"`
	Value         float64   `json:"valor"`
	StartDate     time.Time `json:"fecha_inicio"`
	EndDate       time.Time `json:"fecha_fin,omitempty"` // zero value means open-ended
}

// ResolveCurrentPrice sets CurrentPrice and PriceListName from the price entry
// valid on the given date. If no entry is valid it falls back to the first
// known entry; with no entries at all the fields are left untouched.
func (p *Product) ResolveCurrentPrice(today time.Time) {
	if len(p.Prices) == 0 {
		return
	}
	selected := p.Prices[0]
	for _, entry := range p.Prices {
		if entry.StartDate.After(today) {
			continue
		}
		if entry.EndDate.IsZero() || !entry.EndDate.Before(today) {
			selected = entry
			break
		}
	}
	p.CurrentPrice = selected.Value
	p.PriceListName = selected.PriceListName
}

// ActivePromotions returns the promotions in effect on the given date.
func (p Product) ActivePromotions(date time.Time) []Promotion {
	var active []Promotion
	for _, promo := range p.Promotions {
		if promo.ActiveOn(date) {
			active = append(active, promo)
		}
	}
	return active
}

// ProductData is the denormalized display copy carried alongside each embedded
// vector, so retrieval never needs a second catalog lookup.
type ProductData struct {
	Name         string         `json:"nombre"`
	Description  string         `json:"descripcion,omitempty"`
	CategoryID   int            `json:"categoria_id"`
	CategoryName string         `json:"categoria"`
	CurrentPrice float64        `json:"precio_actual"`
	Promotions   []Promotion    `json:"promociones,omitempty"`
	Images       []ProductImage `json:"imagenes,omitempty"`
}

// EmbeddingRecord ties a product's embedded text and vector to its display data.
type EmbeddingRecord struct {
	ProductID int         `json:"product_id"`
	Text      string      `json:"text"`
	Vector    []float32   `json:"vector"`
	Product   ProductData `json:"product_data"`
}

// SearchResult is one ranked hit from the vector index.
type SearchResult struct {
	Score  float64
	Record EmbeddingRecord
}

// ConversationTurn is a single utterance in a client conversation.
type ConversationTurn struct {
	Message   string    `json:"message"`
	IsBot     bool      `json:"is_bot"`
	Timestamp time.Time `json:"timestamp"`
}

// InterestType classifies what an interest signal refers to.
type InterestType string

const (
	InterestProduct   InterestType = "producto"
	InterestCategory  InterestType = "categoria"
	InterestPromotion InterestType = "promocion"
)

// Valid reports whether the type is one of the known interest types.
func (t InterestType) Valid() bool {
	switch t {
	case InterestProduct, InterestCategory, InterestPromotion:
		return true
	}
	return false
}

// InterestSignal is a typed, scored inference that a client cares about a
// product, category or promotion. Never mutated after creation.
type InterestSignal struct {
	Type           InterestType `json:"tipo_interes"`
	EntityID       int          `json:"entidad_id"`
	EntityName     string       `json:"entidad_nombre,omitempty"`
	Confidence     float64      `json:"nivel_interes"`
	Context        string       `json:"contexto,omitempty"`
	ConversationID int          `json:"conversacion_id"`
	ClientID       int          `json:"cliente_id"`
	CreatedAt      time.Time    `json:"fecha"`
}

// Client identifies a WhatsApp customer.
type Client struct {
	ID    int    `json:"id"`
	Phone string `json:"telefono"`
	Name  string `json:"nombre"`
}

// ClientProfile is a client's ranked interest list, used to drive campaigns.
type ClientProfile struct {
	Client    Client
	Interests []InterestSignal
}
