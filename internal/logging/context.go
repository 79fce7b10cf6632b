package logging

import "context"

type contextKey string

const fieldsKey contextKey = "log_fields"

// Fields are added to every record logged with a context carrying them.
type Fields struct {
	RPCID  string
	Method string
	Tool   string
}

// WithFields merges fields into ctx. Non-empty new values win.
func WithFields(ctx context.Context, fields Fields) context.Context {
	merged := FieldsFrom(ctx)
	if fields.RPCID != "" {
		merged.RPCID = fields.RPCID
	}
	if fields.Method != "" {
		merged.Method = fields.Method
	}
	if fields.Tool != "" {
		merged.Tool = fields.Tool
	}
	return context.WithValue(ctx, fieldsKey, merged)
}

func FieldsFrom(ctx context.Context) Fields {
	if fields, ok := ctx.Value(fieldsKey).(Fields); ok {
		return fields
	}
	return Fields{}
}
