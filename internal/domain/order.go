package domain

import "time"

type PaymentMethod string

const (
	PaymentPix        PaymentMethod = "pix"
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentDebitCard  PaymentMethod = "debit_card"
	PaymentCash       PaymentMethod = "cash"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentPix, PaymentCreditCard, PaymentDebitCard, PaymentCash:
		return true
	}
	return false
}

// Money amounts are integer cents.
type Order struct {
	ID          int64       `json:"id"`
	OwnerUserID string      `json:"usuarioId"`
	Status      Status      `json:"status"`
	Items       []OrderItem `json:"itens"`
	TotalValue  int64       `json:"total"`
	Delivery    Delivery    `json:"entrega"`
	Payment     Payment     `json:"pagamento"`
	CreatedAt   time.Time   `json:"criadoEm"`
	UpdatedAt   time.Time   `json:"atualizadoEm"`
}

// OrderItem carries the unit price at order time; it is never re-read from the catalog.
type OrderItem struct {
	ProductID   int64  `json:"produtoId"`
	ProductName string `json:"nome"`
	Quantity    int    `json:"quantidade"`
	UnitPrice   int64  `json:"precoUnitario"`
}

// Delivery with Pickup set means in-store pickup and Address is ignored.
type Delivery struct {
	Pickup  bool   `json:"retirada"`
	Address string `json:"endereco,omitempty"`
}

type Payment struct {
	Method    PaymentMethod `json:"metodo"`
	ChangeFor *int64        `json:"trocoPara,omitempty"`
}

type Product struct {
	ID    int64
	Name  string
	Price int64
}

// StatusEntry is one row of an order's status timeline.
type StatusEntry struct {
	Status    Status    `json:"status"`
	ChangedBy string    `json:"alteradoPor"`
	ChangedAt time.Time `json:"alteradoEm"`
}

func SumItems(items []OrderItem) int64 {
	var total int64
	for _, it := range items {
		total += it.UnitPrice * int64(it.Quantity)
	}
	return total
}
