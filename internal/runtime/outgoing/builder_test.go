package outgoing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLogon(t *testing.T) {
	msg, err := NewBuilder("FIX.4.2").
		MsgType(MsgTypeLogon).
		MsgSeqNum(1).
		SenderCompID("CLIENT").
		TargetCompID("VENUE").
		EncryptMethod(EncryptNone).
		HeartBtInt(30).
		Build()
	require.NoError(t, err)

	assert.Equal(t,
		"8=FIX.4.2|9=41|35=A|34=1|49=CLIENT|56=VENUE|98=0|108=30|10=103|",
		msg.String())
}

func TestBuildDefaultsBeginString(t *testing.T) {
	msg := NewBuilder().MsgType(MsgTypeTestRequest).TestReqID("ping").MustBuild()
	assert.Contains(t, msg.String(), "8=FIX.4.4|")
}

func TestBuildChecksumCoversHeaderAndBody(t *testing.T) {
	msg := NewBuilder().MsgType(MsgTypeNewOrderSingle).Symbol("EUR/USD").MustBuild()
	raw := msg.Bytes()

	trailer := len(raw) - len("10=000\x01")
	assert.Equal(t, "10=", string(raw[trailer:trailer+3]))
	assert.Equal(t, byte('\x01'), raw[len(raw)-1])

	want := Checksum(raw[:trailer])
	got := string(raw[trailer+3 : len(raw)-1])
	assert.Len(t, got, 3)
	assert.Equal(t, want, atoi(t, got))
}

func TestBuildOverrides(t *testing.T) {
	msg, err := NewBuilder("FIX.4.2").
		MsgType(MsgTypeLogon).
		OverrideBodyLength("5").
		OverrideChecksum("000").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "8=FIX.4.2|9=5|35=A|10=000|", msg.String())
}

func TestBuildOrderFields(t *testing.T) {
	ts := time.Date(2008, 1, 8, 19, 41, 12, 859_000_000, time.UTC)
	msg := NewBuilder().
		MsgType(MsgTypeNewOrderSingle).
		SendingTime(ts).
		ClOrdID("order-1").
		Side(SideSell).
		OrdType(OrdTypeLimit).
		Price(decimal.RequireFromString("1.46909")).
		OrderQty(decimal.NewFromInt(10000)).
		TransactTime(ts.In(time.FixedZone("CET", 3600))).
		PossDupFlag(true).
		MustBuild()

	s := msg.String()
	assert.Contains(t, s, "|35=D|52=20080108-19:41:12.859|11=order-1|54=2|40=2|44=1.46909|38=10000|60=20080108-19:41:12.859|43=Y|")
}

func TestBuildRejectsMisuse(t *testing.T) {
	_, err := NewBuilder().Append(TagSymbol, "EUR/USD").Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tag 55")

	_, err = NewBuilder().MsgTypeCode("A").Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"A"`)

	assert.Panics(t, func() { NewBuilder().Append(TagPrice, "1").MustBuild() })
}

func TestBuildAppendsCustomFields(t *testing.T) {
	msg := NewBuilder().MsgTypeCode("AE").Append(9041, "7670249").RawData("abc").MustBuild()
	assert.Contains(t, msg.String(), "|35=AE|9041=7670249|95=3|96=abc|")
}

func TestKnownTagsAndTypes(t *testing.T) {
	assert.True(t, KnownTag(TagPassword))
	assert.False(t, KnownTag(9041))
	assert.True(t, KnownMsgType("j"))
	assert.False(t, KnownMsgType("AE"))
}

func TestFromBytesCopies(t *testing.T) {
	raw := []byte("8=FIX.4.4\x01")
	msg := FromBytes(raw)
	raw[0] = 'X'

	assert.Equal(t, "8=FIX.4.4|", msg.String())
	assert.Equal(t, 10, msg.Len())
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, 178, Checksum([]byte("8=FIX.4.2\x019=5\x0135=A\x01")))
	assert.Equal(t, 0, Checksum(nil))
}

func atoi(t *testing.T, s string) int {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return int(d.IntPart())
}
