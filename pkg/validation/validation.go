package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// RoomCodeRegex accepts join codes as typed by users after upper-casing.
	RoomCodeRegex = regexp.MustCompile(`^[A-Z0-9]{6,20}$`)
)

const (
	maxMediaSourceLen = 2048
	maxChatContentLen = 1000
	maxUsernameLen    = 64
)

// ValidateRoomCode validates a normalized join code
func ValidateRoomCode(code string) error {
	if code == "" {
		return fmt.Errorf("room code is required")
	}
	if !RoomCodeRegex.MatchString(code) {
		return fmt.Errorf("room code must be 6-20 uppercase letters or digits")
	}
	return nil
}

// ValidateRoomName validates room display name
func ValidateRoomName(name string, min, max int) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("room name is required")
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("room name contains invalid characters")
	}
	return ValidateStringLength(name, min, max, "room name")
}

// ValidateMaxUsers accepts nil (unlimited) or a value within [min, max].
func ValidateMaxUsers(maxUsers *int, min, max int) error {
	if maxUsers == nil {
		return nil
	}
	if *maxUsers < min {
		return fmt.Errorf("max users must be at least %d", min)
	}
	if *maxUsers > max {
		return fmt.Errorf("max users is too high (max %d)", max)
	}
	return nil
}

// ValidateMediaSource accepts absolute http(s) URLs or opaque source tags
// such as a screen share id.
func ValidateMediaSource(source string) error {
	source = strings.TrimSpace(source)
	if source == "" {
		return fmt.Errorf("media source is required")
	}
	if len(source) > maxMediaSourceLen {
		return fmt.Errorf("media source is too long (max %d characters)", maxMediaSourceLen)
	}
	if strings.Contains(source, "://") {
		u, err := url.Parse(source)
		if err != nil {
			return fmt.Errorf("invalid media source URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid media source scheme (must be http or https)")
		}
		if u.Host == "" {
			return fmt.Errorf("media source URL must have a host")
		}
	}
	return nil
}

// ValidateChatContent bounds the size of a single chat message
func ValidateChatContent(content string) error {
	if utf8.RuneCountInString(content) > maxChatContentLen {
		return fmt.Errorf("message is too long (max %d characters)", maxChatContentLen)
	}
	return nil
}

// ValidateUsername checks the display name forwarded by the gateway
func ValidateUsername(username string) error {
	if utf8.RuneCountInString(username) > maxUsernameLen {
		return fmt.Errorf("username is too long (max %d characters)", maxUsernameLen)
	}
	return nil
}

// ValidateStringLength validates string length
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
