package domain

import (
	"strconv"
	"strings"
)

// Status is the lifecycle state of an order. Values are the storefront's wire strings.
type Status string

const (
	StatusReceived       Status = "Recebido"
	StatusPreparing      Status = "Em Preparo"
	StatusReadyForPickup Status = "Pronto para Retirada"
	StatusOutForDelivery Status = "Saiu para Entrega"
	StatusDelivered      Status = "Entregue"
	StatusCancelled      Status = "Cancelado"
)

// main path, in order; Cancelled sits outside it
var statusRank = map[Status]int{
	StatusReceived:       0,
	StatusPreparing:      1,
	StatusReadyForPickup: 2,
	StatusOutForDelivery: 3,
	StatusDelivered:      4,
}

var statusAliases = map[string]Status{
	"recebido":             StatusReceived,
	"received":             StatusReceived,
	"em preparo":           StatusPreparing,
	"preparing":            StatusPreparing,
	"pronto para retirada": StatusReadyForPickup,
	"ready_for_pickup":     StatusReadyForPickup,
	"saiu para entrega":    StatusOutForDelivery,
	"out_for_delivery":     StatusOutForDelivery,
	"entregue":             StatusDelivered,
	"delivered":            StatusDelivered,
	"cancelado":            StatusCancelled,
	"cancelled":            StatusCancelled,
	"canceled":             StatusCancelled,
}

// ParseStatus accepts the wire value (any case) or its english alias.
func ParseStatus(s string) (Status, error) {
	st, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", ValidationError("unknown status " + strconv.Quote(s))
	}
	return st, nil
}

func (s Status) Valid() bool {
	if s == StatusCancelled {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition: forward along the main path (skipping allowed), or to Cancelled from any
// non-terminal state. Never backward, never to the same status.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() || from.Terminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return statusRank[to] > statusRank[from]
}

// Advances reports whether a status observed later may replace current in a client view.
func Advances(current, next Status) bool {
	if current == "" {
		return next.Valid()
	}
	return CanTransition(current, next)
}

// Label is the customer-facing sentence used in push notifications.
func (s Status) Label() string {
	switch s {
	case StatusReceived:
		return "Recebemos seu pedido."
	case StatusPreparing:
		return "Seu pedido está sendo preparado."
	case StatusReadyForPickup:
		return "Seu pedido está pronto para retirada."
	case StatusOutForDelivery:
		return "Seu pedido saiu para entrega."
	case StatusDelivered:
		return "Seu pedido foi entregue. Bom apetite!"
	case StatusCancelled:
		return "Seu pedido foi cancelado."
	default:
		return "O status do seu pedido mudou: " + string(s)
	}
}
