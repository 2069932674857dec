package bridge

// Minimal float32 linear algebra for object transforms. The engine streams
// 4x4 matrices as 16 floats in row-major order; the host convention is
// column-major, so decoded matrices are transposed before assignment.

type Vector3 struct {
	X float32
	Y float32
	Z float32
}

func Vec3(x float32, y float32, z float32) Vector3 {
	return Vector3{
		X: x,
		Y: y,
		Z: z,
	}
}

// flat 16 floats, m[row*4+col] in the order produced by the engine
type Matrix4 [16]float32

func IdentityMatrix4() Matrix4 {
	return Matrix4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

func Matrix4FromSlice(values []float32) (Matrix4, bool) {
	if len(values) < 16 {
		return Matrix4{}, false
	}
	var m Matrix4
	copy(m[:], values[0:16])
	return m, true
}

func (self Matrix4) Transposed() Matrix4 {
	var t Matrix4
	for row := 0; row < 4; row += 1 {
		for col := 0; col < 4; col += 1 {
			t[col*4+row] = self[row*4+col]
		}
	}
	return t
}

// translation column under the host's column-major convention
func (self Matrix4) Translation() Vector3 {
	return Vector3{
		X: self[12],
		Y: self[13],
		Z: self[14],
	}
}
