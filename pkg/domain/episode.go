package domain

import "time"

// Episode represents a podcast episode known to the catalogue.
type Episode struct {
	// EID is the stable episode identifier derived from the audio enclosure URL.
	EID string `bson:"eid" json:"eid"`

	// Title is the episode title, when available.
	Title string `bson:"title" json:"title"`

	// AudioURL is the URL of the episode's audio enclosure.
	AudioURL string `bson:"audio_url,omitempty" json:"audio_url,omitempty"`

	// PubDate is the publication date from the feed.
	PubDate time.Time `bson:"pub_date" json:"pub_date"`

	// Duration is the total playback length in seconds.
	Duration float64 `bson:"duration" json:"duration"`

	// Transcribed is set once a transcript has been indexed for the episode.
	Transcribed bool `bson:"transcribed" json:"transcribed"`
}
