package contact

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/zombor/numify/internal/extract"
)

// MinPhoneDigits is the shortest number we will dial, chat with or save
const MinPhoneDigits = 7

// ErrInvalidPhone is returned when a phone number is empty or too short
var ErrInvalidPhone = errors.New("valid phone number is required")

// Actions holds the URIs a client opens to reach a phone number
type Actions struct {
	Phone   string `json:"phone"`
	Dial    string `json:"dial"`
	Chat    string `json:"chat"`
	ChatWeb string `json:"chat_web"`
}

// ValidatePhone reduces phone to digits and checks its length
func ValidatePhone(phone string) (string, error) {
	digits := extract.Digits(phone)
	if len(digits) < MinPhoneDigits {
		return "", fmt.Errorf("%w: need at least %d digits, got %d", ErrInvalidPhone, MinPhoneDigits, len(digits))
	}
	return digits, nil
}

// NewActions builds the dialer and chat URIs for a phone number
func NewActions(phone string) (*Actions, error) {
	digits, err := ValidatePhone(phone)
	if err != nil {
		return nil, err
	}
	return &Actions{
		Phone:   digits,
		Dial:    "tel:" + digits,
		Chat:    "whatsapp://send?" + url.Values{"phone": {digits}}.Encode(),
		ChatWeb: "https://wa.me/" + digits,
	}, nil
}
