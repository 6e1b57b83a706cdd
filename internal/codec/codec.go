// Package codec parses raw Caddy JSON access-log lines into LogRecords
// and round-trips records to and from their stored byte form.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/logvault/logvault/internal/model"
	"github.com/logvault/logvault/internal/pkg/apperrors"
	"github.com/valyala/fastjson"
)

// handledRequestMsg marks the Caddy log lines that are access-log
// entries; everything else in the file is ignored.
const handledRequestMsg = "handled request"

var parserPool fastjson.ParserPool

// ParseLine decodes one raw log line. It returns (nil, nil) for lines
// that are not access-log entries (blank lines, other Caddy messages);
// those still consume their line number. Malformed JSON or wrongly
// typed fields yield a ParseError carrying the position.
func ParseLine(fileID string, lineNo int64, raw []byte) (*model.LogRecord, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.ParseBytes(raw)
	if err != nil {
		return nil, apperrors.NewParseError("invalid json", err).At(fileID, lineNo)
	}
	if string(v.GetStringBytes("msg")) != handledRequestMsg {
		return nil, nil
	}

	rec := &model.LogRecord{
		FileID: fileID,
		LineNo: lineNo,
		UserID: string(v.GetStringBytes("user_id")), // absent -> ""
	}

	if rec.TS, err = floatField(v, "ts"); err != nil {
		return nil, apperrors.NewParseError(err.Error(), nil).At(fileID, lineNo)
	}
	if rec.Duration, err = floatField(v, "duration"); err != nil {
		return nil, apperrors.NewParseError(err.Error(), nil).At(fileID, lineNo)
	}
	if rec.Size, err = intField(v, "size"); err != nil {
		return nil, apperrors.NewParseError(err.Error(), nil).At(fileID, lineNo)
	}
	status, err := intField(v, "status")
	if err != nil {
		return nil, apperrors.NewParseError(err.Error(), nil).At(fileID, lineNo)
	}
	rec.StatusCode = int(status)

	if rec.RespHeaders, err = headerField(v, "resp_headers"); err != nil {
		return nil, apperrors.NewParseError(err.Error(), nil).At(fileID, lineNo)
	}

	req := v.Get("request")
	if req == nil {
		return nil, apperrors.NewParseError("missing request object", nil).At(fileID, lineNo)
	}
	rec.RemoteAddr = string(req.GetStringBytes("remote_addr"))
	rec.Proto = string(req.GetStringBytes("proto"))
	rec.Method = string(req.GetStringBytes("method"))
	rec.Host = string(req.GetStringBytes("host"))
	rec.URI = string(req.GetStringBytes("uri"))
	if rec.ReqHeaders, err = headerField(req, "headers"); err != nil {
		return nil, apperrors.NewParseError(err.Error(), nil).At(fileID, lineNo)
	}

	return rec, nil
}

// Encode serializes a record to its stored byte form.
func Encode(rec *model.LogRecord) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "encode record", err)
	}
	return b, nil
}

// Decode is the inverse of Encode: Decode(Encode(r)) == r for every
// valid record.
func Decode(data []byte) (*model.LogRecord, error) {
	rec := &model.LogRecord{
		RespHeaders: model.HeaderMap{},
		ReqHeaders:  model.HeaderMap{},
	}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, apperrors.NewParseError("decode record", err)
	}
	return rec, nil
}

func floatField(v *fastjson.Value, key string) (float64, error) {
	fv := v.Get(key)
	if fv == nil {
		return 0, fmt.Errorf("missing field %q", key)
	}
	f, err := fv.Float64()
	if err != nil {
		return 0, fmt.Errorf("field %q is not a number", key)
	}
	return f, nil
}

func intField(v *fastjson.Value, key string) (int64, error) {
	fv := v.Get(key)
	if fv == nil {
		return 0, fmt.Errorf("missing field %q", key)
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, fmt.Errorf("field %q is not an integer", key)
	}
	return n, nil
}

// headerField reads an ordered header object. fastjson's Object.Visit
// walks keys in document order, which is what keeps the multimap
// insertion-ordered.
func headerField(v *fastjson.Value, key string) (model.HeaderMap, error) {
	headers := model.HeaderMap{}
	hv := v.Get(key)
	if hv == nil {
		return headers, nil // absent -> empty mapping, never nil
	}
	obj, err := hv.Object()
	if err != nil {
		return nil, fmt.Errorf("field %q is not an object", key)
	}

	var visitErr error
	obj.Visit(func(k []byte, val *fastjson.Value) {
		if visitErr != nil {
			return
		}
		arr, err := val.Array()
		if err != nil {
			visitErr = fmt.Errorf("header %q: values must be an array", string(k))
			return
		}
		values := make([]string, 0, len(arr))
		for _, item := range arr {
			sb, err := item.StringBytes()
			if err != nil {
				visitErr = fmt.Errorf("header %q: non-string value", string(k))
				return
			}
			values = append(values, string(sb))
		}
		headers.Add(string(k), values...)
	})
	if visitErr != nil {
		return nil, visitErr
	}
	return headers, nil
}
