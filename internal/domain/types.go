package domain

import "time"

type MessageID string
type SenderID string

// AnonymousSender is used whenever no identity is signed in.
const AnonymousSender SenderID = "Anon"

type Timestamp = time.Time
