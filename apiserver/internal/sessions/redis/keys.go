package redis

import (
	"fmt"
)

func prefixedName(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", prefix, key)
}

func refreshTokenKey(prefix, userID, sessionID string) string {
	return prefixedName(
		prefix,
		fmt.Sprintf("refresh:%s:%s", userID, sessionID),
	)
}
