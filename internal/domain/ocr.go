package domain

// OCRBlock is one recognized text block with its engine confidence (0-1)
type OCRBlock struct {
	Text       string  `json:"text" binding:"required"`
	Confidence float64 `json:"confidence"`
}
