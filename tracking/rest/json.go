package rest

import (
	"bytes"
	"math"
	"strconv"
	"time"
)

/*
number is a float encoded the way the server's protobuf JSON does,
non-finite values go as "NaN", "Infinity" and "-Infinity" strings
*/
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	v := float64(n)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Infinity"`), nil
	}
	return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

func (n *number) UnmarshalJSON(bs []byte) error {
	s := string(bytes.Trim(bs, `"`))
	switch s {
	case "NaN":
		*n = number(math.NaN())
	case "Infinity", "+Infinity", "inf":
		*n = number(math.Inf(1))
	case "-Infinity", "-inf":
		*n = number(math.Inf(-1))
	default:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*n = number(v)
	}
	return nil
}

/*
jsonInt is an int64 field, the server sends them as numbers or strings.
Timestamps are milliseconds since epoch.
*/
type jsonInt int64

func msOf(t time.Time) int64 { return t.UnixNano() / int64(time.Millisecond) }

func (m jsonInt) Time() time.Time { return time.Unix(0, int64(m)*int64(time.Millisecond)) }

func (m *jsonInt) UnmarshalJSON(bs []byte) error {
	s := string(bytes.Trim(bs, `"`))
	if s == "" || s == "null" {
		*m = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*m = jsonInt(v)
	return nil
}

/*
quoteNonFinite turns bare NaN and Infinity tokens, which some servers emit, into strings
*/
func quoteNonFinite(bs []byte) []byte {
	if !bytes.Contains(bs, []byte("NaN")) && !bytes.Contains(bs, []byte("Infinity")) {
		return bs
	}
	out := make([]byte, 0, len(bs)+16)
	inString, escaped := false, false
	for i := 0; i < len(bs); i++ {
		c := bs[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			out = append(out, c)
			continue
		}
		if c == '"' {
			inString = true
			out = append(out, c)
			continue
		}
		if tok := nonFiniteAt(bs[i:]); tok != "" {
			out = append(out, '"')
			out = append(out, tok...)
			out = append(out, '"')
			i += len(tok) - 1
			continue
		}
		out = append(out, c)
	}
	return out
}

func nonFiniteAt(bs []byte) string {
	for _, tok := range []string{"NaN", "Infinity", "-Infinity"} {
		if bytes.HasPrefix(bs, []byte(tok)) {
			return tok
		}
	}
	return ""
}
