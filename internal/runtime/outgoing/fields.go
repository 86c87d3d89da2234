package outgoing

import "strconv"

// Tags with a dedicated Builder setter. Append refuses them.
const (
	TagAccount              = 1
	TagBeginSeqNo           = 7
	TagClOrdID              = 11
	TagEndSeqNo             = 16
	TagSecurityIDSource     = 22
	TagMsgSeqNum            = 34
	TagMsgType              = 35
	TagOrderQty             = 38
	TagOrdType              = 40
	TagPossDupFlag          = 43
	TagPrice                = 44
	TagRefSeqNum            = 45
	TagSecurityID           = 48
	TagSenderCompID         = 49
	TagSendingTime          = 52
	TagSide                 = 54
	TagSymbol               = 55
	TagTargetCompID         = 56
	TagTransactTime         = 60
	TagRawDataLength        = 95
	TagRawData              = 96
	TagEncryptMethod        = 98
	TagHeartBtInt           = 108
	TagTestReqID            = 112
	TagOrigSendingTime      = 122
	TagResetSeqNumFlag      = 141
	TagRefMsgType           = 372
	TagSessionRejectReason  = 373
	TagBusinessRejectReason = 380
	TagUsername             = 553
	TagPassword             = 554
)

// Header and trailer tags written by Build.
const (
	TagBeginString = 8
	TagBodyLength  = 9
	TagCheckSum    = 10
)

var knownTags = map[int]struct{}{
	TagAccount: {}, TagBeginSeqNo: {}, TagClOrdID: {}, TagEndSeqNo: {},
	TagSecurityIDSource: {}, TagMsgSeqNum: {}, TagMsgType: {}, TagOrderQty: {},
	TagOrdType: {}, TagPossDupFlag: {}, TagPrice: {}, TagRefSeqNum: {},
	TagSecurityID: {}, TagSenderCompID: {}, TagSendingTime: {}, TagSide: {},
	TagSymbol: {}, TagTargetCompID: {}, TagTransactTime: {}, TagRawDataLength: {},
	TagRawData: {}, TagEncryptMethod: {}, TagHeartBtInt: {}, TagTestReqID: {},
	TagOrigSendingTime: {}, TagResetSeqNumFlag: {}, TagRefMsgType: {},
	TagSessionRejectReason: {}, TagBusinessRejectReason: {}, TagUsername: {},
	TagPassword: {},
}

// KnownTag reports whether tag has a dedicated Builder setter.
func KnownTag(tag int) bool {
	_, ok := knownTags[tag]
	return ok
}

type MsgType string

const (
	MsgTypeBusinessMessageReject MsgType = "j"
	MsgTypeExecutionReport       MsgType = "8"
	MsgTypeLogon                 MsgType = "A"
	MsgTypeLogout                MsgType = "5"
	MsgTypeMarketDataSnapshot    MsgType = "W"
	MsgTypeNewOrderSingle        MsgType = "D"
	MsgTypeReject                MsgType = "3"
	MsgTypeResendRequest         MsgType = "2"
	MsgTypeTestRequest           MsgType = "1"
)

// KnownMsgType reports whether code is one of the MsgType constants.
func KnownMsgType(code string) bool {
	switch MsgType(code) {
	case MsgTypeBusinessMessageReject, MsgTypeExecutionReport, MsgTypeLogon,
		MsgTypeLogout, MsgTypeMarketDataSnapshot, MsgTypeNewOrderSingle,
		MsgTypeReject, MsgTypeResendRequest, MsgTypeTestRequest:
		return true
	}
	return false
}

type EncryptMethod int

const (
	EncryptNone EncryptMethod = iota
	EncryptPKCS
	EncryptDES
	EncryptPKCSDES
	EncryptPGPDES
	EncryptPGPDESMD5
	EncryptPEMDESMD5
)

type Side int

const (
	SideBuy  Side = 1
	SideSell Side = 2
)

type OrdType int

const (
	OrdTypeMarket    OrdType = 1
	OrdTypeLimit     OrdType = 2
	OrdTypeStop      OrdType = 3
	OrdTypeStopLimit OrdType = 4
)

type BusinessRejectReason int

const (
	BusinessRejectOther BusinessRejectReason = iota
	BusinessRejectUnknownID
	BusinessRejectUnknownSecurity
	BusinessRejectUnsupportedMessageType
	BusinessRejectApplicationNotAvailable
	BusinessRejectConditionallyRequiredFieldMissing
)

type SessionRejectReason int

const (
	SessionRejectInvalidTagNumber SessionRejectReason = iota
	SessionRejectRequiredTagMissing
	SessionRejectTagNotDefinedForMsgType
	SessionRejectUndefinedTag
	SessionRejectTagWithoutValue
	SessionRejectValueIncorrect
	SessionRejectIncorrectDataFormat
	SessionRejectDecryptionProblem
	SessionRejectSignatureProblem
	SessionRejectCompIDProblem
	SessionRejectSendingTimeAccuracyProblem
	SessionRejectInvalidMsgType
)

func itoa[T ~int](v T) string { return strconv.Itoa(int(v)) }
