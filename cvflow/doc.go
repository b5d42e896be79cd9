/*
Package cvflow plugs OpenCV into interp: a Farneback MotionEstimator, a
VideoCapture Source and a VideoWriter Sink.

Everything calling into OpenCV is only compiled with the opencv build tag,
gocv needs the OpenCV libraries at build time:

	go build -tags opencv ./...
*/
package cvflow
