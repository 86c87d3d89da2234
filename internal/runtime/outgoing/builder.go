// Package outgoing builds encoded FIX messages for Client.Send.
//
// Fields are written in the order the setters are called. Build prepends
// BeginString and BodyLength and appends the CheckSum trailer.
package outgoing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultBeginString = "FIX.4.4"

	// TimestampLayout is the UTCTimestamp format with milliseconds.
	TimestampLayout = "20060102-15:04:05.000"

	soh = '\x01'
)

// Message is an encoded, immutable FIX message.
type Message struct {
	raw []byte
}

// FromBytes wraps bytes that are already FIX encoded. No validation is done.
func FromBytes(raw []byte) Message {
	return Message{raw: append([]byte(nil), raw...)}
}

// Bytes returns the encoded message. Callers must not modify it.
func (m Message) Bytes() []byte { return m.raw }

func (m Message) Len() int { return len(m.raw) }

// String renders the message with '|' separators.
func (m Message) String() string {
	return strings.ReplaceAll(string(m.raw), string(soh), "|")
}

// Builder accumulates body fields. Misuse, such as appending a tag that has
// a dedicated setter, is recorded and returned by Build.
type Builder struct {
	beginString      string
	body             strings.Builder
	lengthOverride   *string
	checksumOverride *string
	errs             []error
}

// NewBuilder uses DefaultBeginString when beginString is empty.
func NewBuilder(beginString ...string) *Builder {
	b := &Builder{beginString: DefaultBeginString}
	if len(beginString) > 0 && beginString[0] != "" {
		b.beginString = beginString[0]
	}
	return b
}

func (b *Builder) add(tag int, value string) *Builder {
	b.body.WriteString(strconv.Itoa(tag))
	b.body.WriteByte('=')
	b.body.WriteString(value)
	b.body.WriteByte(soh)
	return b
}

// OverrideBodyLength writes value as tag 9 instead of the computed length.
func (b *Builder) OverrideBodyLength(value string) *Builder {
	b.lengthOverride = &value
	return b
}

// OverrideChecksum writes value as tag 10 instead of the computed checksum.
func (b *Builder) OverrideChecksum(value string) *Builder {
	b.checksumOverride = &value
	return b
}

func (b *Builder) MsgType(t MsgType) *Builder { return b.add(TagMsgType, string(t)) }

// MsgTypeCode sets a message type that has no MsgType constant.
func (b *Builder) MsgTypeCode(code string) *Builder {
	if KnownMsgType(code) {
		b.errs = append(b.errs, fmt.Errorf("msg type %q has a MsgType constant", code))
		return b
	}
	return b.add(TagMsgType, code)
}

// Append adds a field without a dedicated setter.
func (b *Builder) Append(tag int, value string) *Builder {
	if KnownTag(tag) {
		b.errs = append(b.errs, fmt.Errorf("tag %d (value %q) has a builder method", tag, value))
		return b
	}
	return b.add(tag, value)
}

func (b *Builder) Account(v string) *Builder      { return b.add(TagAccount, v) }
func (b *Builder) SenderCompID(v string) *Builder { return b.add(TagSenderCompID, v) }
func (b *Builder) TargetCompID(v string) *Builder { return b.add(TagTargetCompID, v) }
func (b *Builder) BeginSeqNo(v int) *Builder      { return b.add(TagBeginSeqNo, strconv.Itoa(v)) }
func (b *Builder) EndSeqNo(v int) *Builder        { return b.add(TagEndSeqNo, strconv.Itoa(v)) }
func (b *Builder) RefSeqNum(v int) *Builder       { return b.add(TagRefSeqNum, strconv.Itoa(v)) }
func (b *Builder) TestReqID(v string) *Builder    { return b.add(TagTestReqID, v) }
func (b *Builder) MsgSeqNum(v int) *Builder       { return b.add(TagMsgSeqNum, strconv.Itoa(v)) }

// MsgSeqNumString allows deliberately malformed sequence numbers.
func (b *Builder) MsgSeqNumString(v string) *Builder { return b.add(TagMsgSeqNum, v) }

func (b *Builder) ResetSeqNumFlag(v string) *Builder { return b.add(TagResetSeqNumFlag, v) }
func (b *Builder) Username(v string) *Builder        { return b.add(TagUsername, v) }
func (b *Builder) Password(v string) *Builder        { return b.add(TagPassword, v) }
func (b *Builder) HeartBtInt(seconds int) *Builder   { return b.add(TagHeartBtInt, strconv.Itoa(seconds)) }
func (b *Builder) EncryptMethod(m EncryptMethod) *Builder {
	return b.add(TagEncryptMethod, itoa(m))
}

// RawData writes RawDataLength followed by RawData.
func (b *Builder) RawData(v string) *Builder {
	b.add(TagRawDataLength, strconv.Itoa(len(v)))
	return b.add(TagRawData, v)
}

func (b *Builder) ClOrdID(v string) *Builder          { return b.add(TagClOrdID, v) }
func (b *Builder) Symbol(v string) *Builder           { return b.add(TagSymbol, v) }
func (b *Builder) SecurityID(v string) *Builder       { return b.add(TagSecurityID, v) }
func (b *Builder) SecurityIDSource(v string) *Builder { return b.add(TagSecurityIDSource, v) }
func (b *Builder) Side(s Side) *Builder               { return b.add(TagSide, itoa(s)) }
func (b *Builder) OrdType(t OrdType) *Builder         { return b.add(TagOrdType, itoa(t)) }

// Price and OrderQty are written in plain notation, never exponent form.
func (b *Builder) Price(v decimal.Decimal) *Builder    { return b.add(TagPrice, v.String()) }
func (b *Builder) OrderQty(v decimal.Decimal) *Builder { return b.add(TagOrderQty, v.String()) }

func (b *Builder) SendingTime(t time.Time) *Builder {
	return b.add(TagSendingTime, FormatTimestamp(t))
}

func (b *Builder) TransactTime(t time.Time) *Builder {
	return b.add(TagTransactTime, FormatTimestamp(t))
}

func (b *Builder) OrigSendingTime(t time.Time) *Builder {
	return b.add(TagOrigSendingTime, FormatTimestamp(t))
}

func (b *Builder) PossDupFlag(possDup bool) *Builder {
	if possDup {
		return b.add(TagPossDupFlag, "Y")
	}
	return b.add(TagPossDupFlag, "N")
}

func (b *Builder) RefMsgType(t MsgType) *Builder { return b.add(TagRefMsgType, string(t)) }

func (b *Builder) BusinessRejectReason(r BusinessRejectReason) *Builder {
	return b.add(TagBusinessRejectReason, itoa(r))
}

func (b *Builder) SessionRejectReason(r SessionRejectReason) *Builder {
	return b.add(TagSessionRejectReason, itoa(r))
}

// Build encodes the message. The builder can keep being used afterwards;
// each Build reflects every field added so far.
func (b *Builder) Build() (Message, error) {
	if len(b.errs) > 0 {
		return Message{}, errors.Join(b.errs...)
	}

	body := b.body.String()
	length := strconv.Itoa(len(body))
	if b.lengthOverride != nil {
		length = *b.lengthOverride
	}

	raw := make([]byte, 0, len(body)+len(b.beginString)+len(length)+16)
	raw = append(raw, "8="...)
	raw = append(raw, b.beginString...)
	raw = append(raw, soh)
	raw = append(raw, "9="...)
	raw = append(raw, length...)
	raw = append(raw, soh)
	raw = append(raw, body...)

	checksum := fmt.Sprintf("%03d", Checksum(raw))
	if b.checksumOverride != nil {
		checksum = *b.checksumOverride
	}
	raw = append(raw, "10="...)
	raw = append(raw, checksum...)
	raw = append(raw, soh)
	return Message{raw: raw}, nil
}

// MustBuild is Build for messages known to be well formed. It panics on
// builder misuse.
func (b *Builder) MustBuild() Message {
	msg, err := b.Build()
	if err != nil {
		panic(err)
	}
	return msg
}

// Checksum is the byte sum of data modulo 256.
func Checksum(data []byte) int {
	sum := 0
	for _, c := range data {
		sum += int(c)
	}
	return sum % 256
}

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
