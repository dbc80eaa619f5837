package narration

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// Prompts shown to the shopper when narration fails.
const (
	PromptEnableAccess = "عذراً، المساعد (منصور) يتطلب تفعيل مفتاح الوصول المدفوع ليعمل. هل تريد تفعيله الآن؟"
	PromptRetryLater   = "عذراً، حدث خطأ أثناء تشغيل صوت المساعد. يرجى المحاولة لاحقاً."
)

// PromptFor maps a narration failure to the message shown to the shopper.
// A nil error has no prompt.
func PromptFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return PromptEnableAccess
	default:
		return PromptRetryLater
	}
}

// WAV wraps the PCM samples in a RIFF header so browsers can play them.
func (a *Audio) WAV() []byte {
	const bitsPerSample = 16
	channels := a.Channels
	if channels <= 0 {
		channels = Channels
	}
	rate := a.SampleRate
	if rate <= 0 {
		rate = SampleRate
	}
	blockAlign := channels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.Grow(44 + len(a.Data))
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(a.Data)))
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(rate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(rate*blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(a.Data)))
	buf.Write(a.Data)
	return buf.Bytes()
}
