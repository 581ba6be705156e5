package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// CSRF tokens are double-submit compatible: an HMAC over the session ID and
// issue time, handed out in both the response body and a readable cookie.

func csrfMAC(secret string, msg []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	return mac.Sum(nil)
}

func GenerateCSRF(secret, sessionID string) (string, error) {
	msg := []byte(sessionID + ":" + strconv.FormatInt(time.Now().Unix(), 10))
	token := append(msg, csrfMAC(secret, msg)...)
	return base64.RawURLEncoding.EncodeToString(token), nil
}

func VerifyCSRF(secret, token string, maxAge time.Duration) (bool, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return false, err
	}
	if len(raw) <= sha256.Size {
		return false, errors.New("token too short")
	}
	msg, sig := raw[:len(raw)-sha256.Size], raw[len(raw)-sha256.Size:]
	if !hmac.Equal(sig, csrfMAC(secret, msg)) {
		return false, errors.New("bad signature")
	}
	cut := strings.LastIndexByte(string(msg), ':')
	if cut < 0 {
		return false, errors.New("malformed token")
	}
	issued, err := strconv.ParseInt(string(msg[cut+1:]), 10, 64)
	if err != nil || issued == 0 {
		return false, errors.New("timestamp missing")
	}
	if time.Now().Unix()-issued > int64(maxAge.Seconds()) {
		return false, errors.New("token expired")
	}
	return true, nil
}
