package valuenet

import "github.com/dragunovdenis/checkerstrainer/internal/checkers"

// FeatureSize is the width of the feature vector extracted from a
// GameState: one indicator per (square, piece kind) pair, covering
// ally-man, ally-king, opponent-man, opponent-king occupancy across
// all 32 playable squares.
const FeatureSize = checkers.NumSquares * 4

// Features extracts a dense indicator feature vector from s, the
// fixed representation every DenseNet forward/backward pass operates
// over. This one-hot-per-plane encoding is grounded on
// agents/common/neural_network.go's NeuralNetwork.Predict, whose input
// is a flat []float64 of a fixed, caller-defined size.
func Features(s checkers.GameState) []float64 {
	f := make([]float64, FeatureSize)
	for sq := 1; sq <= checkers.NumSquares; sq++ {
		base := (sq - 1) * 4
		switch s.At(sq) {
		case checkers.AllyMan:
			f[base] = 1
		case checkers.AllyKing:
			f[base+1] = 1
		case checkers.OppMan:
			f[base+2] = 1
		case checkers.OppKing:
			f[base+3] = 1
		}
	}
	return f
}
