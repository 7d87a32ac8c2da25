package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"time"

	"summit-ticketing/internal/models"

	"github.com/skip2/go-qrcode"
)

// Generator produces AES-encrypted QR images for attendee check-in.
// The payload is opaque to the holder; only the check-in scanner, which
// shares the secret, can decrypt it.
type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:]}
}

// payload is what the scanner decrypts at the door.
type payload struct {
	AttendeeID string    `json:"attendee_id"`
	PurchaseID string    `json:"purchase_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	TicketType string    `json:"ticket_type"`
	IssuedAt   time.Time `json:"issued_at"`
}

func (g *Generator) GenerateAttendeeQR(attendee models.Attendee) ([]byte, error) {
	data, err := json.Marshal(payload{
		AttendeeID: attendee.ID,
		PurchaseID: attendee.PurchaseID,
		Name:       attendee.FullName,
		Email:      attendee.Email,
		TicketType: attendee.TicketTypeName,
		IssuedAt:   time.Now(),
	})
	if err != nil {
		return nil, err
	}

	encrypted, err := encryptAES(data, g.secret)
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}
