package domain

import "errors"

var (
	ErrNoAccountAvailable  = errors.New("no hay cuentas disponibles")
	ErrAccountNotFound     = errors.New("cuenta no encontrada")
	ErrAccountNotAvailable = errors.New("cuenta no disponible")
	ErrPurchaseNotFound    = errors.New("compra no encontrada")
	ErrClientNotFound      = errors.New("cliente no encontrado")
	ErrInvalidArgument     = errors.New("argumento inválido")
)
