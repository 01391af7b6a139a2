package math

func TransformCreate() Transform {
	return Transform{
		Position: NewVec3Zero(),
		Rotation: NewVec3Zero(),
		Scale:    NewVec3One(),
	}
}

func TransformFromPosition(position Vec3) Transform {
	t := TransformCreate()
	t.Position = position
	return t
}

func TransformFromPositionRotationScale(position, rotation, scale Vec3) Transform {
	return Transform{
		Position: position,
		Rotation: rotation,
		Scale:    scale,
	}
}

func (t *Transform) Translate(translation Vec3) {
	t.Position = t.Position.Add(translation)
}

func (t *Transform) Rotate(rotation Vec3) {
	t.Rotation = t.Rotation.Add(rotation)
}

// Matrix returns the local model matrix: scale, then rotation, then translation.
func (t Transform) Matrix() Mat4 {
	m := NewMat4Scale(t.Scale)
	m = m.Mul(NewMat4EulerXYZ(t.Rotation.X, t.Rotation.Y, t.Rotation.Z))
	return m.Mul(NewMat4Translation(t.Position))
}
