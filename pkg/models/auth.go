package models

import "encoding/json"

type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type Token struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresAt   *Timestamp      `json:"expires_at,omitempty"`
	DeviceInfo  json.RawMessage `json:"device_info,omitempty"`
}

type SessionInfo struct {
	ID         int             `json:"id"`
	IPAddress  string          `json:"ip_address,omitempty"`
	DeviceInfo json.RawMessage `json:"device_info,omitempty"`
	LastUsedAt *Timestamp      `json:"last_used_at,omitempty"`
	CreatedAt  Timestamp       `json:"created_at"`
	ExpiresAt  *Timestamp      `json:"expires_at,omitempty"`
	IsCurrent  bool            `json:"is_current,omitempty"`
}

type OnlineUser struct {
	UserID       int        `json:"user_id"`
	Username     string     `json:"username"`
	SessionCount int        `json:"session_count"`
	LastUsedAt   *Timestamp `json:"last_used_at,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
