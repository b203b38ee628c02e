// Package tempo estimates the tempo of extracted analysis audio.
//
// The Estimator interface is the capability consumed by ingestion. The bundled
// AutocorrelationEstimator decodes WAV input with go-audio/wav, builds a log
// energy onset envelope, and picks the autocorrelation peak between MinBPM and
// MaxBPM.
package tempo
