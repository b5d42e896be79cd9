package main

type WsBaseMessage struct {
	Type string `json:"type"`
}

type WsQueueUpdate struct {
	WsBaseMessage
	Jobs []Job `json:"jobs"`
}

type WsWorkerProgress struct {
	WsBaseMessage
	WorkerInfo
}

type WsWorkerWarning struct {
	WsBaseMessage
	WorkerID int    `json:"workerId"`
	JobID    int64  `json:"jobId"`
	Pair     int    `json:"pair"`
	Message  string `json:"message"`
}
