package mumbleproto

import "google.golang.org/protobuf/encoding/protowire"

// Version is exchanged by both sides at the start of a connection.
type Version struct {
	VersionV1 uint32
	VersionV2 uint64
	Release   string
	OS        string
	OSVersion string
}

func (*Version) Kind() Kind { return KindVersion }

func (m *Version) appendTo(b []byte) []byte {
	if m.VersionV1 != 0 {
		b = appendUint(b, 1, uint64(m.VersionV1))
	}
	if m.Release != "" {
		b = appendString(b, 2, m.Release)
	}
	if m.OS != "" {
		b = appendString(b, 3, m.OS)
	}
	if m.OSVersion != "" {
		b = appendString(b, 4, m.OSVersion)
	}
	if m.VersionV2 != 0 {
		b = appendUint(b, 5, m.VersionV2)
	}
	return b
}

func (m *Version) unmarshal(b []byte) error {
	r := fieldReader{b: b}
	for r.next() {
		switch r.num {
		case 1:
			m.VersionV1 = r.uint32()
		case 2:
			m.Release = r.string()
		case 3:
			m.OS = r.string()
		case 4:
			m.OSVersion = r.string()
		case 5:
			m.VersionV2 = r.uint64()
		default:
			r.skip()
		}
	}
	return r.err
}

// Authenticate carries the client's credentials.
type Authenticate struct {
	Username     string
	Password     string
	Tokens       []string
	CeltVersions []int32
	Opus         bool
	ClientType   int32
}

func (*Authenticate) Kind() Kind { return KindAuthenticate }

func (m *Authenticate) appendTo(b []byte) []byte {
	if m.Username != "" {
		b = appendString(b, 1, m.Username)
	}
	if m.Password != "" {
		b = appendString(b, 2, m.Password)
	}
	for _, t := range m.Tokens {
		b = appendString(b, 3, t)
	}
	for _, v := range m.CeltVersions {
		b = appendInt32(b, 4, v)
	}
	if m.Opus {
		b = appendBool(b, 5, true)
	}
	if m.ClientType != 0 {
		b = appendInt32(b, 6, m.ClientType)
	}
	return b
}

func (m *Authenticate) unmarshal(b []byte) error {
	r := fieldReader{b: b}
	for r.next() {
		switch r.num {
		case 1:
			m.Username = r.string()
		case 2:
			m.Password = r.string()
		case 3:
			m.Tokens = append(m.Tokens, r.string())
		case 4:
			m.CeltVersions = append(m.CeltVersions, r.int32())
		case 5:
			m.Opus = r.bool()
		case 6:
			m.ClientType = r.int32()
		default:
			r.skip()
		}
	}
	return r.err
}

// Ping is the keepalive message. The server echoes the timestamp back.
type Ping struct {
	Timestamp  uint64
	Good       uint32
	Late       uint32
	Lost       uint32
	Resync     uint32
	UDPPackets uint32
	TCPPackets uint32
	UDPPingAvg float32
	UDPPingVar float32
	TCPPingAvg float32
	TCPPingVar float32
}

func (*Ping) Kind() Kind { return KindPing }

func (m *Ping) appendTo(b []byte) []byte {
	if m.Timestamp != 0 {
		b = appendUint(b, 1, m.Timestamp)
	}
	for i, v := range []uint32{m.Good, m.Late, m.Lost, m.Resync, m.UDPPackets, m.TCPPackets} {
		if v != 0 {
			b = appendUint(b, protowire.Number(2+i), uint64(v))
		}
	}
	for i, v := range []float32{m.UDPPingAvg, m.UDPPingVar, m.TCPPingAvg, m.TCPPingVar} {
		if v != 0 {
			b = appendFloat(b, protowire.Number(8+i), v)
		}
	}
	return b
}

func (m *Ping) unmarshal(b []byte) error {
	r := fieldReader{b: b}
	for r.next() {
		switch r.num {
		case 1:
			m.Timestamp = r.uint64()
		case 2:
			m.Good = r.uint32()
		case 3:
			m.Late = r.uint32()
		case 4:
			m.Lost = r.uint32()
		case 5:
			m.Resync = r.uint32()
		case 6:
			m.UDPPackets = r.uint32()
		case 7:
			m.TCPPackets = r.uint32()
		case 8:
			m.UDPPingAvg = r.float32()
		case 9:
			m.UDPPingVar = r.float32()
		case 10:
			m.TCPPingAvg = r.float32()
		case 11:
			m.TCPPingVar = r.float32()
		default:
			r.skip()
		}
	}
	return r.err
}

// RejectType says why the server refused the connection.
type RejectType int32

const (
	RejectNone RejectType = iota
	RejectWrongVersion
	RejectInvalidUsername
	RejectWrongUserPW
	RejectWrongServerPW
	RejectUsernameInUse
	RejectServerFull
	RejectNoCertificate
	RejectAuthenticatorFail
)

// Reject is sent instead of ServerSync when authentication fails.
type Reject struct {
	Type   RejectType
	Reason string
}

func (*Reject) Kind() Kind { return KindReject }

func (m *Reject) appendTo(b []byte) []byte {
	b = appendInt32(b, 1, int32(m.Type))
	if m.Reason != "" {
		b = appendString(b, 2, m.Reason)
	}
	return b
}

func (m *Reject) unmarshal(b []byte) error {
	r := fieldReader{b: b}
	for r.next() {
		switch r.num {
		case 1:
			m.Type = RejectType(r.int32())
		case 2:
			m.Reason = r.string()
		default:
			r.skip()
		}
	}
	return r.err
}

// ServerSync ends the handshake and tells the client its own session id.
type ServerSync struct {
	Session      *uint32
	MaxBandwidth *uint32
	WelcomeText  *string
	Permissions  *uint64
}

func (*ServerSync) Kind() Kind { return KindServerSync }

func (m *ServerSync) GetSession() uint32 {
	if m == nil || m.Session == nil {
		return 0
	}
	return *m.Session
}

func (m *ServerSync) GetMaxBandwidth() uint32 {
	if m == nil || m.MaxBandwidth == nil {
		return 0
	}
	return *m.MaxBandwidth
}

func (m *ServerSync) GetWelcomeText() string {
	if m == nil || m.WelcomeText == nil {
		return ""
	}
	return *m.WelcomeText
}

func (m *ServerSync) appendTo(b []byte) []byte {
	b = appendOptUint32(b, 1, m.Session)
	b = appendOptUint32(b, 2, m.MaxBandwidth)
	b = appendOptString(b, 3, m.WelcomeText)
	b = appendOptUint64(b, 4, m.Permissions)
	return b
}

func (m *ServerSync) unmarshal(b []byte) error {
	r := fieldReader{b: b}
	for r.next() {
		switch r.num {
		case 1:
			m.Session = Ptr(r.uint32())
		case 2:
			m.MaxBandwidth = Ptr(r.uint32())
		case 3:
			m.WelcomeText = Ptr(r.string())
		case 4:
			m.Permissions = Ptr(r.uint64())
		default:
			r.skip()
		}
	}
	return r.err
}

// ChannelRemove announces that a channel was deleted.
type ChannelRemove struct {
	ChannelID uint32
}

func (*ChannelRemove) Kind() Kind { return KindChannelRemove }

func (m *ChannelRemove) appendTo(b []byte) []byte {
	return appendUint(b, 1, uint64(m.ChannelID))
}

func (m *ChannelRemove) unmarshal(b []byte) error {
	r := fieldReader{b: b}
	for r.next() {
		switch r.num {
		case 1:
			m.ChannelID = r.uint32()
		default:
			r.skip()
		}
	}
	return r.err
}

// ChannelState creates or updates a channel. Only fields that are set
// changed.
type ChannelState struct {
	ChannelID   *uint32
	Parent      *uint32
	Name        *string
	Links       []uint32
	Description *string
	LinksAdd    []uint32
	LinksRemove []uint32
	Temporary   *bool
	Position    *int32
	MaxUsers    *uint32
}

func (*ChannelState) Kind() Kind { return KindChannelState }

func (m *ChannelState) GetChannelID() uint32 {
	if m == nil || m.ChannelID == nil {
		return 0
	}
	return *m.ChannelID
}

func (m *ChannelState) GetName() string {
	if m == nil || m.Name == nil {
		return ""
	}
	return *m.Name
}

func (m *ChannelState) appendTo(b []byte) []byte {
	b = appendOptUint32(b, 1, m.ChannelID)
	b = appendOptUint32(b, 2, m.Parent)
	b = appendOptString(b, 3, m.Name)
	b = appendUint32s(b, 4, m.Links)
	b = appendOptString(b, 5, m.Description)
	b = appendUint32s(b, 6, m.LinksAdd)
	b = appendUint32s(b, 7, m.LinksRemove)
	b = appendOptBool(b, 8, m.Temporary)
	b = appendOptInt32(b, 9, m.Position)
	b = appendOptUint32(b, 11, m.MaxUsers)
	return b
}

func (m *ChannelState) unmarshal(b []byte) error {
	r := fieldReader{b: b}
	for r.next() {
		switch r.num {
		case 1:
			m.ChannelID = Ptr(r.uint32())
		case 2:
			m.Parent = Ptr(r.uint32())
		case 3:
			m.Name = Ptr(r.string())
		case 4:
			m.Links = r.uint32s(m.Links)
		case 5:
			m.Description = Ptr(r.string())
		case 6:
			m.LinksAdd = r.uint32s(m.LinksAdd)
		case 7:
			m.LinksRemove = r.uint32s(m.LinksRemove)
		case 8:
			m.Temporary = Ptr(r.bool())
		case 9:
			m.Position = Ptr(r.int32())
		case 11:
			m.MaxUsers = Ptr(r.uint32())
		default:
			r.skip()
		}
	}
	return r.err
}

// UserRemove announces that a user left or was kicked.
type UserRemove struct {
	Session uint32
	Actor   uint32
	Reason  string
	Ban     bool
}

func (*UserRemove) Kind() Kind { return KindUserRemove }

func (m *UserRemove) appendTo(b []byte) []byte {
	b = appendUint(b, 1, uint64(m.Session))
	if m.Actor != 0 {
		b = appendUint(b, 2, uint64(m.Actor))
	}
	if m.Reason != "" {
		b = appendString(b, 3, m.Reason)
	}
	if m.Ban {
		b = appendBool(b, 4, true)
	}
	return b
}

func (m *UserRemove) unmarshal(b []byte) error {
	r := fieldReader{b: b}
	for r.next() {
		switch r.num {
		case 1:
			m.Session = r.uint32()
		case 2:
			m.Actor = r.uint32()
		case 3:
			m.Reason = r.string()
		case 4:
			m.Ban = r.bool()
		default:
			r.skip()
		}
	}
	return r.err
}

// UserState creates or updates a connected user. Only fields that are set
// changed.
type UserState struct {
	Session         *uint32
	Actor           *uint32
	Name            *string
	UserID          *uint32
	ChannelID       *uint32
	Mute            *bool
	Deaf            *bool
	Suppress        *bool
	SelfMute        *bool
	SelfDeaf        *bool
	Comment         *string
	Hash            *string
	PrioritySpeaker *bool
	Recording       *bool
}

func (*UserState) Kind() Kind { return KindUserState }

func (m *UserState) GetSession() uint32 {
	if m == nil || m.Session == nil {
		return 0
	}
	return *m.Session
}

func (m *UserState) GetName() string {
	if m == nil || m.Name == nil {
		return ""
	}
	return *m.Name
}

func (m *UserState) GetChannelID() uint32 {
	if m == nil || m.ChannelID == nil {
		return 0
	}
	return *m.ChannelID
}

func (m *UserState) appendTo(b []byte) []byte {
	b = appendOptUint32(b, 1, m.Session)
	b = appendOptUint32(b, 2, m.Actor)
	b = appendOptString(b, 3, m.Name)
	b = appendOptUint32(b, 4, m.UserID)
	b = appendOptUint32(b, 5, m.ChannelID)
	b = appendOptBool(b, 6, m.Mute)
	b = appendOptBool(b, 7, m.Deaf)
	b = appendOptBool(b, 8, m.Suppress)
	b = appendOptBool(b, 9, m.SelfMute)
	b = appendOptBool(b, 10, m.SelfDeaf)
	b = appendOptString(b, 14, m.Comment)
	b = appendOptString(b, 15, m.Hash)
	b = appendOptBool(b, 18, m.PrioritySpeaker)
	b = appendOptBool(b, 19, m.Recording)
	return b
}

func (m *UserState) unmarshal(b []byte) error {
	r := fieldReader{b: b}
	for r.next() {
		switch r.num {
		case 1:
			m.Session = Ptr(r.uint32())
		case 2:
			m.Actor = Ptr(r.uint32())
		case 3:
			m.Name = Ptr(r.string())
		case 4:
			m.UserID = Ptr(r.uint32())
		case 5:
			m.ChannelID = Ptr(r.uint32())
		case 6:
			m.Mute = Ptr(r.bool())
		case 7:
			m.Deaf = Ptr(r.bool())
		case 8:
			m.Suppress = Ptr(r.bool())
		case 9:
			m.SelfMute = Ptr(r.bool())
		case 10:
			m.SelfDeaf = Ptr(r.bool())
		case 14:
			m.Comment = Ptr(r.string())
		case 15:
			m.Hash = Ptr(r.string())
		case 18:
			m.PrioritySpeaker = Ptr(r.bool())
		case 19:
			m.Recording = Ptr(r.bool())
		default:
			r.skip()
		}
	}
	return r.err
}

// TextMessage is a chat message addressed to sessions, channels or trees.
type TextMessage struct {
	Actor     *uint32
	Session   []uint32
	ChannelID []uint32
	TreeID    []uint32
	Message   string
}

func (*TextMessage) Kind() Kind { return KindTextMessage }

func (m *TextMessage) GetActor() uint32 {
	if m == nil || m.Actor == nil {
		return 0
	}
	return *m.Actor
}

func (m *TextMessage) appendTo(b []byte) []byte {
	b = appendOptUint32(b, 1, m.Actor)
	b = appendUint32s(b, 2, m.Session)
	b = appendUint32s(b, 3, m.ChannelID)
	b = appendUint32s(b, 4, m.TreeID)
	return appendString(b, 5, m.Message)
}

func (m *TextMessage) unmarshal(b []byte) error {
	r := fieldReader{b: b}
	for r.next() {
		switch r.num {
		case 1:
			m.Actor = Ptr(r.uint32())
		case 2:
			m.Session = r.uint32s(m.Session)
		case 3:
			m.ChannelID = r.uint32s(m.ChannelID)
		case 4:
			m.TreeID = r.uint32s(m.TreeID)
		case 5:
			m.Message = r.string()
		default:
			r.skip()
		}
	}
	return r.err
}

// PermissionDenied reports an action the server refused.
type PermissionDenied struct {
	Permission uint32
	ChannelID  uint32
	Session    uint32
	Reason     string
	Type       int32
	Name       string
}

func (*PermissionDenied) Kind() Kind { return KindPermissionDenied }

func (m *PermissionDenied) appendTo(b []byte) []byte {
	if m.Permission != 0 {
		b = appendUint(b, 1, uint64(m.Permission))
	}
	if m.ChannelID != 0 {
		b = appendUint(b, 2, uint64(m.ChannelID))
	}
	if m.Session != 0 {
		b = appendUint(b, 3, uint64(m.Session))
	}
	if m.Reason != "" {
		b = appendString(b, 4, m.Reason)
	}
	if m.Type != 0 {
		b = appendInt32(b, 5, m.Type)
	}
	if m.Name != "" {
		b = appendString(b, 6, m.Name)
	}
	return b
}

func (m *PermissionDenied) unmarshal(b []byte) error {
	r := fieldReader{b: b}
	for r.next() {
		switch r.num {
		case 1:
			m.Permission = r.uint32()
		case 2:
			m.ChannelID = r.uint32()
		case 3:
			m.Session = r.uint32()
		case 4:
			m.Reason = r.string()
		case 5:
			m.Type = r.int32()
		case 6:
			m.Name = r.string()
		default:
			r.skip()
		}
	}
	return r.err
}

// CryptSetup carries UDP crypto parameters. Voice is tunnelled over TCP here,
// so the client only records it.
type CryptSetup struct {
	Key         []byte
	ClientNonce []byte
	ServerNonce []byte
}

func (*CryptSetup) Kind() Kind { return KindCryptSetup }

func (m *CryptSetup) appendTo(b []byte) []byte {
	if m.Key != nil {
		b = appendBytes(b, 1, m.Key)
	}
	if m.ClientNonce != nil {
		b = appendBytes(b, 2, m.ClientNonce)
	}
	if m.ServerNonce != nil {
		b = appendBytes(b, 3, m.ServerNonce)
	}
	return b
}

func (m *CryptSetup) unmarshal(b []byte) error {
	r := fieldReader{b: b}
	for r.next() {
		switch r.num {
		case 1:
			m.Key = r.bytes()
		case 2:
			m.ClientNonce = r.bytes()
		case 3:
			m.ServerNonce = r.bytes()
		default:
			r.skip()
		}
	}
	return r.err
}

// CodecVersion tells the client which voice codecs the server expects.
type CodecVersion struct {
	Alpha       int32
	Beta        int32
	PreferAlpha bool
	Opus        bool
}

func (*CodecVersion) Kind() Kind { return KindCodecVersion }

func (m *CodecVersion) appendTo(b []byte) []byte {
	b = appendInt32(b, 1, m.Alpha)
	b = appendInt32(b, 2, m.Beta)
	b = appendBool(b, 3, m.PreferAlpha)
	if m.Opus {
		b = appendBool(b, 4, true)
	}
	return b
}

func (m *CodecVersion) unmarshal(b []byte) error {
	r := fieldReader{b: b}
	for r.next() {
		switch r.num {
		case 1:
			m.Alpha = r.int32()
		case 2:
			m.Beta = r.int32()
		case 3:
			m.PreferAlpha = r.bool()
		case 4:
			m.Opus = r.bool()
		default:
			r.skip()
		}
	}
	return r.err
}

// ServerConfig carries server-wide limits.
type ServerConfig struct {
	MaxBandwidth       uint32
	WelcomeText        string
	AllowHTML          bool
	MessageLength      uint32
	ImageMessageLength uint32
	MaxUsers           uint32
	RecordingAllowed   bool
}

func (*ServerConfig) Kind() Kind { return KindServerConfig }

func (m *ServerConfig) appendTo(b []byte) []byte {
	if m.MaxBandwidth != 0 {
		b = appendUint(b, 1, uint64(m.MaxBandwidth))
	}
	if m.WelcomeText != "" {
		b = appendString(b, 2, m.WelcomeText)
	}
	if m.AllowHTML {
		b = appendBool(b, 3, true)
	}
	if m.MessageLength != 0 {
		b = appendUint(b, 4, uint64(m.MessageLength))
	}
	if m.ImageMessageLength != 0 {
		b = appendUint(b, 5, uint64(m.ImageMessageLength))
	}
	if m.MaxUsers != 0 {
		b = appendUint(b, 6, uint64(m.MaxUsers))
	}
	if m.RecordingAllowed {
		b = appendBool(b, 7, true)
	}
	return b
}

func (m *ServerConfig) unmarshal(b []byte) error {
	r := fieldReader{b: b}
	for r.next() {
		switch r.num {
		case 1:
			m.MaxBandwidth = r.uint32()
		case 2:
			m.WelcomeText = r.string()
		case 3:
			m.AllowHTML = r.bool()
		case 4:
			m.MessageLength = r.uint32()
		case 5:
			m.ImageMessageLength = r.uint32()
		case 6:
			m.MaxUsers = r.uint32()
		case 7:
			m.RecordingAllowed = r.bool()
		default:
			r.skip()
		}
	}
	return r.err
}
