package util

import (
	"reflect"
	"strings"
)

// IsStructPtr checks if the given object is a pointer to a struct
func IsStructPtr(obj any) bool {
	if obj == nil {
		return false
	}
	outVal := reflect.ValueOf(obj)
	if outVal.Kind() != reflect.Ptr {
		return false
	}
	return outVal.Elem().Kind() == reflect.Struct
}

// SanitizeLog prevents certain classes of injection attacks before logging
// https://codeql.github.com/codeql-query-help/go/go-log-injection/
func SanitizeLog(log string) string {
	escapedLog := strings.ReplaceAll(log, "\n", "")
	return strings.ReplaceAll(escapedLog, "\r", "")
}

// Is2xxResponse returns true if the given status code is a 2xx response
func Is2xxResponse(statusCode int) bool {
	return statusCode/100 == 2
}
