package payload

// AudioInfo describes the active audio path.
// Empty fields were not reported by the device.
type AudioInfo struct {
	Format          string
	InputFrequency  string
	InputChannels   string
	ListeningMode   string
	OutputChannels  string
	OutputFrequency string
}

// VideoInfo describes the active video path.
// Empty fields were not reported by the device.
type VideoInfo struct {
	InputResolution   string
	InputColorSchema  string
	InputColorDepth   string
	OutputResolution  string
	OutputColorSchema string
	OutputColorDepth  string
	PictureMode       string
}

// ParseAudioInfo decodes an audio-information reply.
// The record is only meaningful when the returned kind is ResultValue.
func ParseAudioInfo(param string) (AudioInfo, ResultKind) {
	r := ParseList(param)
	if r.Kind != ResultValue {
		return AudioInfo{}, r.Kind
	}
	return AudioInfo{
		Format:          token(r.Values, 1),
		InputFrequency:  token(r.Values, 2),
		InputChannels:   token(r.Values, 3),
		ListeningMode:   token(r.Values, 4),
		OutputChannels:  token(r.Values, 5),
		OutputFrequency: token(r.Values, 6),
	}, ResultValue
}

// ParseVideoInfo decodes a video-information reply.
// The record is only meaningful when the returned kind is ResultValue.
func ParseVideoInfo(param string) (VideoInfo, ResultKind) {
	r := ParseList(param)
	if r.Kind != ResultValue {
		return VideoInfo{}, r.Kind
	}
	return VideoInfo{
		InputResolution:   token(r.Values, 1),
		InputColorSchema:  token(r.Values, 2),
		InputColorDepth:   token(r.Values, 3),
		OutputResolution:  token(r.Values, 5),
		OutputColorSchema: token(r.Values, 6),
		OutputColorDepth:  token(r.Values, 7),
		PictureMode:       token(r.Values, 8),
	}, ResultValue
}
