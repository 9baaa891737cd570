package utils

import (
	"fmt"

	"timecapsule/config"

	qrcode "github.com/skip2/go-qrcode"
)

// EmergencyURL builds the public emergency-view URL encoded into QR codes.
func EmergencyURL(capsuleID, token string) string {
	return fmt.Sprintf("%s/emergency/%s?token=%s", config.AppConfig.BaseURL, capsuleID, token)
}

// EmergencyQRPNG renders the emergency-access URL for a capsule as a
// PNG of the given pixel size.
func EmergencyQRPNG(capsuleID, token string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(EmergencyURL(capsuleID, token), qrcode.Medium, size)
}
