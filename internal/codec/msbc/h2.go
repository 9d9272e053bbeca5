// Package msbc implements the H2-framed mSBC codec used for wideband
// (mSBC) telephony over eSCO, per spec.md §4.8/§4.7/§GLOSSARY and the
// worked examples in §8.1/§8.2.
package msbc

// FrameLen is the fixed length of one H2-framed mSBC packet: a 2-byte
// header, a 57-byte SBC frame, and one pad byte, per spec.md §4.8.
const FrameLen = 60

// sbcPayloadLen is the SBC frame length carried inside each H2 packet.
const sbcPayloadLen = 57

// syncByte is the constant first byte of every H2 header.
const syncByte = 0x01

// validSeqBytes are the four legal second-header-bytes: a 2-bit sequence
// number with every bit duplicated for error detection, per spec.md §4.8
// and §8.1.
var validSeqBytes = [4]byte{0x08, 0x38, 0xC8, 0xF8}

func isValidSeqByte(b byte) bool {
	for _, v := range validSeqBytes {
		if b == v {
			return true
		}
	}
	return false
}

// ScanH2 looks for the earliest valid H2 header in buf.
//
// If found, it returns (true, offset, keepLen) where keepLen is the number
// of bytes from offset to the end of buf — everything the caller should
// keep starting at the header, ready to be decoded once a full 60-byte
// packet has accumulated.
//
// If no valid header is found, it returns (false, 0, keepLen) where
// keepLen is 1 if buf is non-empty (the trailing byte might be the start
// of a header whose second byte hasn't arrived yet) or 0 if buf is empty,
// per spec.md §4.8: "preserving partial data when no header found".
func ScanH2(buf []byte) (found bool, offset int, keepLen int) {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == syncByte && isValidSeqByte(buf[i+1]) {
			return true, i, len(buf) - i
		}
	}
	if len(buf) > 0 {
		return false, 0, 1
	}
	return false, 0, 0
}

// seqByteFor returns the header's second byte for the 2-bit sequence
// number n (n is taken mod 4).
func seqByteFor(n int) byte {
	return validSeqBytes[n%4]
}
