package main

import (
	"sync"
)

type Queue struct {
	jobs []Job
	hub  *Hub
	lock sync.Mutex
}

func NewQueue(jobs []Job, hub *Hub) *Queue {
	return &Queue{
		jobs: jobs,
		hub:  hub,
	}
}

// GetJobs returns a copy of the pending jobs
func (q *Queue) GetJobs() []Job {
	q.lock.Lock()
	defer q.lock.Unlock()

	return append([]Job{}, q.jobs...)
}

func (q *Queue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return len(q.jobs)
}

func (q *Queue) Enqueue(item Job) {
	q.lock.Lock()
	defer q.lock.Unlock()

	q.jobs = append(q.jobs, item)
	q.sendUpdate()
}

func (q *Queue) Dequeue() (Job, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if len(q.jobs) == 0 {
		return Job{}, false
	}

	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	q.sendUpdate()
	return job, true
}

func (q *Queue) RemoveByID(id int64) (Job, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	index := q.indexOf(id)
	if index == -1 {
		return Job{}, false
	}

	job := q.jobs[index]
	q.jobs = append(q.jobs[:index], q.jobs[index+1:]...)
	q.sendUpdate()
	return job, true
}

func (q *Queue) indexOf(id int64) int {
	for i, item := range q.jobs {
		if item.ID == id {
			return i
		}
	}

	return -1
}

func (q *Queue) sendUpdate() {
	q.hub.BroadcastMessage(WsQueueUpdate{
		WsBaseMessage: WsBaseMessage{
			Type: "queue_update",
		},
		Jobs: append([]Job{}, q.jobs...),
	})
}
