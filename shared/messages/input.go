package messages

import (
	"math"

	"github.com/automoto/coopmod/shared/bitstream"
)

// Transform is a human's world transform: position and rotation quaternion.
type Transform struct {
	Position [3]float32
	Rotation [4]float32
}

// IdentityTransform sits at the origin with no rotation.
var IdentityTransform = Transform{Rotation: [4]float32{0, 0, 0, 1}}

func (t *Transform) serialize(s *bitstream.Stream) {
	for i := range t.Position {
		s.Float32(&t.Position[i])
	}
	for i := range t.Rotation {
		s.Float32(&t.Rotation[i])
	}
}

func (t *Transform) finite() bool {
	for _, v := range t.Position {
		if !finite(v) {
			return false
		}
	}
	for _, v := range t.Rotation {
		if !finite(v) {
			return false
		}
	}
	return true
}

// Inputs are the motion inputs driving a human.
type Inputs struct {
	MoveX, MoveY float32 // -1..1
	Yaw          float32 // radians
	Sprint       bool
	Crouch       bool
	Jump         bool
}

func (in *Inputs) serialize(s *bitstream.Stream) {
	s.Float32(&in.MoveX)
	s.Float32(&in.MoveY)
	s.Float32(&in.Yaw)
	s.Bool(&in.Sprint)
	s.Bool(&in.Crouch)
	s.Bool(&in.Jump)
}

func (in *Inputs) finite() bool {
	return finite(in.MoveX) && finite(in.MoveY) && finite(in.Yaw)
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
