package influx

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Coldness00/Fumes-Detector/internal/core"
)

// ErrNoFields is returned when every field of a point was dropped
var ErrNoFields = errors.New("no encodable fields")

var (
	measurementEscaper = strings.NewReplacer(`\`, `\\`, " ", `\ `, ",", `\,`)
	tagEscaper         = strings.NewReplacer(`\`, `\\`, " ", `\ `, ",", `\,`, "=", `\=`)
	stringEscaper      = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
)

// Tag is a line protocol tag
type Tag struct {
	Key   string
	Value string
}

// Field is a line protocol field. Value may be a bool, any integer type,
// float32, float64 or string; anything else is written as a string.
type Field struct {
	Key   string
	Value any
}

// Point is one line protocol record. Tags and fields are written in order.
type Point struct {
	Measurement string
	Tags        []Tag
	Fields      []Field
	Time        time.Time
}

// Encode renders p as a single line. Fields holding NaN or an infinity are
// dropped and ErrNoFields is returned when none remain. A zero time is
// replaced with the current time.
func Encode(p Point) (string, error) {
	fields := make([]string, 0, len(p.Fields))
	for _, f := range p.Fields {
		value, ok := formatFieldValue(f.Value)
		if !ok {
			continue
		}
		fields = append(fields, tagEscaper.Replace(f.Key)+"="+value)
	}
	if len(fields) == 0 {
		return "", ErrNoFields
	}

	var line strings.Builder
	line.WriteString(measurementEscaper.Replace(p.Measurement))
	for _, t := range p.Tags {
		if t.Value == "" {
			continue
		}
		line.WriteByte(',')
		line.WriteString(tagEscaper.Replace(t.Key))
		line.WriteByte('=')
		line.WriteString(tagEscaper.Replace(t.Value))
	}
	line.WriteByte(' ')
	line.WriteString(strings.Join(fields, ","))

	ts := p.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	line.WriteByte(' ')
	line.WriteString(strconv.FormatInt(ts.UnixNano(), 10))

	return line.String(), nil
}

func formatFieldValue(v any) (string, bool) {
	switch value := v.(type) {
	case bool:
		return strconv.FormatBool(value), true
	case int:
		return strconv.FormatInt(int64(value), 10) + "i", true
	case int8:
		return strconv.FormatInt(int64(value), 10) + "i", true
	case int16:
		return strconv.FormatInt(int64(value), 10) + "i", true
	case int32:
		return strconv.FormatInt(int64(value), 10) + "i", true
	case int64:
		return strconv.FormatInt(value, 10) + "i", true
	case uint:
		return strconv.FormatUint(uint64(value), 10) + "i", true
	case uint8:
		return strconv.FormatUint(uint64(value), 10) + "i", true
	case uint16:
		return strconv.FormatUint(uint64(value), 10) + "i", true
	case uint32:
		return strconv.FormatUint(uint64(value), 10) + "i", true
	case uint64:
		return strconv.FormatUint(value, 10) + "i", true
	case float32:
		return formatFloat(float64(value))
	case float64:
		return formatFloat(value)
	case string:
		return quote(value), true
	default:
		return quote(fmt.Sprint(value)), true
	}
}

// formatFloat writes the shortest representation that round-trips, always
// with a decimal point so the sink types the field as a float
func formatFloat(f float64) (string, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s, true
}

func quote(s string) string {
	return `"` + stringEscaper.Replace(s) + `"`
}

// VerdictEncoder turns verdicts into line protocol records
type VerdictEncoder struct {
	measurement string
	source      string
	linkBase    string
}

// NewVerdictEncoder creates an encoder. source becomes the only tag and
// linkBase prefixes the image links.
func NewVerdictEncoder(measurement, source, linkBase string) *VerdictEncoder {
	return &VerdictEncoder{
		measurement: measurement,
		source:      source,
		linkBase:    strings.TrimRight(linkBase, "/"),
	}
}

// Encode renders one verdict. A zero timestamp means now.
func (e *VerdictEncoder) Encode(answer core.Answer, confidence float64, imageID string, ts time.Time) (string, error) {
	fields := []Field{
		{Key: "answer", Value: string(answer)},
		{Key: "confidence", Value: confidence},
	}
	if imageID != "" {
		fields = append(fields, Field{Key: "image_filename", Value: imageID})
		if link := e.ImageLink(imageID); link != "" {
			fields = append(fields, Field{Key: "image_link", Value: link})
		}
	}

	return Encode(Point{
		Measurement: e.measurement,
		Tags:        []Tag{{Key: "source", Value: e.source}},
		Fields:      fields,
		Time:        ts,
	})
}

// Source returns the value of the source tag
func (e *VerdictEncoder) Source() string {
	return e.source
}

// ImageLink returns the URL of an image under the configured base URL. The
// identifier is appended verbatim.
func (e *VerdictEncoder) ImageLink(imageID string) string {
	if e.linkBase == "" {
		return ""
	}
	return e.linkBase + "/images/" + imageID
}
