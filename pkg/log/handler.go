package log

import (
	"fmt"

	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

// ErrAttrKey is the field name used for an error passed as the first field.
const ErrAttrKey = "error"

// normalizeFields converts slog-style variadic fields into the flat key/value
// slice accepted by zerolog's Fields. A leading error is moved under
// ErrAttrKey and, when it carries a cockroachdb/errors stack, the formatted
// stack is attached under StacktraceKey. An unpaired trailing value is kept
// under "!BADKEY", the way slog reports it.
func normalizeFields(fields []any) []interface{} {
	kv := make([]interface{}, 0, len(fields)+4)

	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			kv = append(kv, ErrAttrKey, err)
			if st := errors.StackTrace(err); st != "" {
				kv = append(kv, StacktraceKey, st)
			}
			fields = fields[1:]
		}
	}

	for i := 0; i < len(fields); i += 2 {
		if i+1 >= len(fields) {
			kv = append(kv, "!BADKEY", fields[i])
			break
		}
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprint(fields[i])
		}
		kv = append(kv, key, fields[i+1])
	}
	return kv
}
