// Package scoring turns a pose track into technique, rhythm, expression and
// difficulty scores, blends them into a total using the challenge weights
// from the versioned weight table, and attaches coaching feedback.
//
// Every constant the engine uses comes from config.WeightTable so scores can
// be reproduced against a recorded weights version.
package scoring
