package mumbleproto

import "strconv"

// Kind is the numeric type id carried in a frame header.
type Kind uint16

const (
	KindVersion             Kind = 0
	KindUDPTunnel           Kind = 1
	KindAuthenticate        Kind = 2
	KindPing                Kind = 3
	KindReject              Kind = 4
	KindServerSync          Kind = 5
	KindChannelRemove       Kind = 6
	KindChannelState        Kind = 7
	KindUserRemove          Kind = 8
	KindUserState           Kind = 9
	KindBanList             Kind = 10
	KindTextMessage         Kind = 11
	KindPermissionDenied    Kind = 12
	KindACL                 Kind = 13
	KindQueryUsers          Kind = 14
	KindCryptSetup          Kind = 15
	KindContextActionModify Kind = 16
	KindContextAction       Kind = 17
	KindUserList            Kind = 18
	KindVoiceTarget         Kind = 19
	KindPermissionQuery     Kind = 20
	KindCodecVersion        Kind = 21
	KindUserStats           Kind = 22
	KindRequestBlob         Kind = 23
	KindServerConfig        Kind = 24
	KindSuggestConfig       Kind = 25
)

var kindNames = [...]string{
	KindVersion:             "Version",
	KindUDPTunnel:           "UDPTunnel",
	KindAuthenticate:        "Authenticate",
	KindPing:                "Ping",
	KindReject:              "Reject",
	KindServerSync:          "ServerSync",
	KindChannelRemove:       "ChannelRemove",
	KindChannelState:        "ChannelState",
	KindUserRemove:          "UserRemove",
	KindUserState:           "UserState",
	KindBanList:             "BanList",
	KindTextMessage:         "TextMessage",
	KindPermissionDenied:    "PermissionDenied",
	KindACL:                 "ACL",
	KindQueryUsers:          "QueryUsers",
	KindCryptSetup:          "CryptSetup",
	KindContextActionModify: "ContextActionModify",
	KindContextAction:       "ContextAction",
	KindUserList:            "UserList",
	KindVoiceTarget:         "VoiceTarget",
	KindPermissionQuery:     "PermissionQuery",
	KindCodecVersion:        "CodecVersion",
	KindUserStats:           "UserStats",
	KindRequestBlob:         "RequestBlob",
	KindServerConfig:        "ServerConfig",
	KindSuggestConfig:       "SuggestConfig",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}
