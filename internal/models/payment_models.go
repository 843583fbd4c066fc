package models

// VerifyPaymentRequest confirms a wallet-submitted transaction signature.
// OrderID is only set for QR-flow confirmations.
type VerifyPaymentRequest struct {
	UserID    string `json:"userID" binding:"required"`
	PackID    string `json:"packID" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	OrderID   string `json:"orderID"`
}

// VerifyPaymentResponse reports whether the transaction satisfied the
// payment predicate and the user was credited.
type VerifyPaymentResponse struct {
	Success bool `json:"success"`
}

// CreateOrderRequest opens a QR checkout session.
type CreateOrderRequest struct {
	UserID string `json:"userID" binding:"required"`
	PackID string `json:"packID" binding:"required"`
}

// CreateOrderResponse carries everything the client needs to render the QR
// code and to poll the order's status.
type CreateOrderResponse struct {
	OrderID        string `json:"orderID"`
	Memo           string `json:"memo"`
	Receiver       string `json:"receiver"`
	Amount         uint64 `json:"amount"` // USDC smallest units
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// OrderStatusResponse reports a session state: pending, success, failed,
// timeout or cancelled.
type OrderStatusResponse struct {
	OrderID string `json:"orderID"`
	Status  string `json:"status"`
}

// BuildTxRequest asks for an unsigned payment transaction for a wallet.
type BuildTxRequest struct {
	UserID string `json:"userID" binding:"required"`
	PackID string `json:"packID" binding:"required"`
	Wallet string `json:"wallet" binding:"required"`
}

// BuildTxResponse carries the serialized transaction the wallet signs.
type BuildTxResponse struct {
	SerializedTx string `json:"serializedTx"` // base64
	Memo         string `json:"memo"`
}
