package model

// AudioFeatures is the numeric feature vector the chart provider attaches to
// a track. Values follow the provider's scales (0..1 for most, BPM for tempo,
// dB for loudness).
type AudioFeatures struct {
	Valence      float64
	Energy       float64
	Tempo        float64
	Danceability float64
	Acousticness float64
	Loudness     float64
}

// ChartFeature returns a named feature value, used by the statistics engine
// to select the chart side of a correlation pair.
func (f AudioFeatures) ChartFeature(name string) (float64, bool) {
	switch name {
	case "valence":
		return f.Valence, true
	case "energy":
		return f.Energy, true
	case "tempo":
		return f.Tempo, true
	case "danceability":
		return f.Danceability, true
	case "acousticness":
		return f.Acousticness, true
	case "loudness":
		return f.Loudness, true
	}
	return 0, false
}

// ChartFeatureNames lists the feature names ChartFeature accepts.
func ChartFeatureNames() []string {
	return []string{"valence", "energy", "tempo", "danceability", "acousticness", "loudness"}
}

// ChartEntry is one track's position in one weekly chart snapshot.
// Entries are immutable facts once ingested for a given week; rank is unique
// within a week.
type ChartEntry struct {
	Week     WeekKey
	Rank     int
	TrackID  string
	Title    string
	Artist   string
	Features AudioFeatures
	Genres   []string
}
