// Package dynamo provides the value types and kinematics shared by every
// part of the two-aircraft simulation.
//
//   - [Point]: position in model units with Euclidean distance
//   - [SingleState]: position plus heading of one aircraft
//   - [JointState]: ownship and intruder states
//   - [SingleAction]: speed, turn rate (rad/s) and altitude rate
//   - [JointAction]: ownship and intruder actions
//   - [Step]: one fixed-timestep unicycle update with an altitude channel
//
// # Example
//
//	x := dynamo.SingleState{P: dynamo.Point{X: 0, Y: 0, Z: 0}, Th: 0}
//	a := dynamo.SingleAction{V: 20, W: 0, Dz: 0}
//	x = dynamo.Step(0.1, a, x) // x.P.X == 2
//
// All types are plain values. Assignment is a deep copy and == is
// structural equality. [Marshal] and [Unmarshal] give a stable msgpack
// encoding for persistence and cross-process transfer.
package dynamo
