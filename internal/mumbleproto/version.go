package mumbleproto

// EncodeVersionV1 packs a release number into the legacy 32-bit layout.
func EncodeVersionV1(major, minor, patch uint8) uint32 {
	return uint32(major)<<16 | uint32(minor)<<8 | uint32(patch)
}

// EncodeVersionV2 packs a release number into the 64-bit layout used by
// 1.5 and later.
func EncodeVersionV2(major, minor, patch uint16) uint64 {
	return uint64(major)<<48 | uint64(minor)<<32 | uint64(patch)<<16
}

// ClientVersion describes this client in the handshake.
func ClientVersion(release, os, osVersion string) *Version {
	return &Version{
		VersionV1: EncodeVersionV1(1, 5, 0),
		VersionV2: EncodeVersionV2(1, 5, 0),
		Release:   release,
		OS:        os,
		OSVersion: osVersion,
	}
}
