package services

const (
	KindVideo = "video"
	KindAudio = "audio"
)

// Format describes one selectable download option. ID doubles as the
// callback identifier and contains a colon (kind:name), which callback
// parsing has to account for.
type Format struct {
	ID    string
	Label string
	Spec  string
	Kind  string
}

var formats = []Format{
	{ID: "video:SD", Label: "SD (480p)", Spec: "best[height<=480]", Kind: KindVideo},
	{ID: "video:HD", Label: "HD (720p)", Spec: "best[height<=720]", Kind: KindVideo},
	{ID: "video:FHD", Label: "Full HD (1080p)", Spec: "best[height<=1080]", Kind: KindVideo},
	{ID: "video:ORIGINAL", Label: "Original (Max Quality)", Spec: "best", Kind: KindVideo},
	{ID: "audio:MP3", Label: "MP3 (320kbps)", Spec: "bestaudio/best", Kind: KindAudio},
}

// FormatOptions returns the selectable formats in display order, videos
// before audio.
func FormatOptions() []Format {
	out := make([]Format, len(formats))
	copy(out, formats)
	return out
}

func FormatByID(id string) (Format, bool) {
	for _, f := range formats {
		if f.ID == id {
			return f, true
		}
	}
	return Format{}, false
}
