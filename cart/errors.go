package main

import "errors"

// Error taxonomy for the cart core. Handlers map these to HTTP statuses; the
// coordinator guarantees none of them leave partial state behind.
var (
	ErrInvalidQuantity   = errors.New("quantity must be a positive integer")
	ErrProductNotFound   = errors.New("product not found")
	ErrLineItemNotFound  = errors.New("line item not found")
	ErrCartNotFound      = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")
)
