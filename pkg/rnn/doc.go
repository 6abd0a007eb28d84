// Package rnn implements the character-level recurrent encoder used to embed
// drug string representations, with back-propagation through time, and a few
// vector helpers shared by the models.
package rnn
