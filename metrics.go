package lifetrack

import (
	"time"
)

type RegisterHook func(class string, id uint64)

type RetireHook func(class string, id uint64, lifetime time.Duration, status CloseStatus)

type OrphanHook func(ref InstanceRef)
