package services

import "cinesync/internal/core/domain"

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) RoomCreated()                         {}
func (NopMetrics) RoomClosed()                          {}
func (NopMetrics) JoinAttempt(string)                   {}
func (NopMetrics) ConnectionOpened()                    {}
func (NopMetrics) ConnectionClosed()                    {}
func (NopMetrics) EventPublished(string)                {}
func (NopMetrics) EventDelivered(string, int)           {}
func (NopMetrics) PublishFailed(string)                 {}
func (NopMetrics) StreamTransition(domain.StreamStatus) {}
