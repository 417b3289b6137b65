package workflow

import "time"

// Status tracks whether a patient still awaits processing in the current room.
type Status string

const (
	StatusWaiting Status = "WAITING"
	StatusSeen    Status = "SEEN"
)

// HistoryEntry records one stay of a patient inside a room. An entry is
// immutable once ExitDate is set; ExitDate, when present, is never before
// EntryDate.
type HistoryEntry struct {
	RoomID        RoomID
	EntryDate     time.Time
	ExitDate      *time.Time
	StatusMessage string
}

// Open reports whether the patient has not yet left the room for this entry.
func (e HistoryEntry) Open() bool {
	return e.ExitDate == nil
}

// RequestData is collected when an exam request is registered.
type RequestData struct {
	RequestedExam      string `json:"requested_exam,omitempty"`
	ReferringPhysician string `json:"referring_physician,omitempty"`
}

// AppointmentData is collected when the appointment is scheduled.
type AppointmentData struct {
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

// ConsultationData is collected during the pre-exam consultation.
type ConsultationData struct {
	ClinicalSummary   string `json:"clinical_summary,omitempty"`
	Contraindications string `json:"contraindications,omitempty"`
}

// InjectionData is collected when the tracer dose is administered.
type InjectionData struct {
	Tracer      string  `json:"tracer,omitempty"`
	ActivityMBq float64 `json:"activity_mbq,omitempty"`
	Route       string  `json:"route,omitempty"`
}

// ExaminationData is collected during image acquisition.
type ExaminationData struct {
	Device string `json:"device,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

// ReportData is collected when the physician writes the report.
type ReportData struct {
	Text       string `json:"text,omitempty"`
	Conclusion string `json:"conclusion,omitempty"`
}

// RetrievalData is collected when results are handed over.
type RetrievalData struct {
	DeliveredTo string `json:"delivered_to,omitempty"`
}

// ArchiveData is collected when the record is archived.
type ArchiveData struct {
	Reason string `json:"reason,omitempty"`
}

// RoomData holds the per-room form payloads gathered along the pathway. Each
// room owns one typed slot; a nil slot means the room's form was never
// submitted.
type RoomData struct {
	Request      *RequestData      `json:"request,omitempty"`
	Appointment  *AppointmentData  `json:"appointment,omitempty"`
	Consultation *ConsultationData `json:"consultation,omitempty"`
	Injection    *InjectionData    `json:"injection,omitempty"`
	Examination  *ExaminationData  `json:"examination,omitempty"`
	Report       *ReportData       `json:"report,omitempty"`
	Retrieval    *RetrievalData    `json:"retrieval,omitempty"`
	Archive      *ArchiveData      `json:"archive,omitempty"`
}

// merge copies the slot matching roomID from other into the receiver. Slots
// for other rooms are ignored so a form can only fill its own room's data.
func (d *RoomData) merge(roomID RoomID, other RoomData) {
	switch roomID {
	case RoomRequest:
		if other.Request != nil {
			clone := *other.Request
			d.Request = &clone
		}
	case RoomAppointment:
		if other.Appointment != nil {
			clone := *other.Appointment
			d.Appointment = &clone
		}
	case RoomConsultation:
		if other.Consultation != nil {
			clone := *other.Consultation
			d.Consultation = &clone
		}
	case RoomInjection:
		if other.Injection != nil {
			clone := *other.Injection
			d.Injection = &clone
		}
	case RoomExamination:
		if other.Examination != nil {
			clone := *other.Examination
			d.Examination = &clone
		}
	case RoomReport:
		if other.Report != nil {
			clone := *other.Report
			d.Report = &clone
		}
	case RoomRetrieval:
		if other.Retrieval != nil {
			clone := *other.Retrieval
			d.Retrieval = &clone
		}
	case RoomArchive:
		if other.Archive != nil {
			clone := *other.Archive
			d.Archive = &clone
		}
	}
}

// Patient is the record moved through the pathway. History is append-only;
// CurrentRoomID always matches the room of the most recent open history
// entry.
type Patient struct {
	ID            string
	FullName      string
	BirthDate     time.Time
	Phone         string
	CurrentRoomID RoomID
	StatusInRoom  Status
	History       []HistoryEntry
	RoomData      RoomData
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OpenEntry returns the most recent history entry without an exit date.
func (p *Patient) OpenEntry() (HistoryEntry, bool) {
	if p == nil {
		return HistoryEntry{}, false
	}
	for i := len(p.History) - 1; i >= 0; i-- {
		if p.History[i].Open() {
			return p.History[i], true
		}
	}
	return HistoryEntry{}, false
}

// Clone returns a deep copy of the patient.
func (p *Patient) Clone() *Patient {
	if p == nil {
		return nil
	}
	clone := *p
	clone.History = make([]HistoryEntry, len(p.History))
	for i, entry := range p.History {
		clone.History[i] = entry
		if entry.ExitDate != nil {
			exit := *entry.ExitDate
			clone.History[i].ExitDate = &exit
		}
	}
	clone.RoomData = cloneRoomData(p.RoomData)
	return &clone
}

func cloneRoomData(data RoomData) RoomData {
	out := RoomData{}
	if data.Request != nil {
		clone := *data.Request
		out.Request = &clone
	}
	if data.Appointment != nil {
		clone := *data.Appointment
		if data.Appointment.ScheduledFor != nil {
			at := *data.Appointment.ScheduledFor
			clone.ScheduledFor = &at
		}
		out.Appointment = &clone
	}
	if data.Consultation != nil {
		clone := *data.Consultation
		out.Consultation = &clone
	}
	if data.Injection != nil {
		clone := *data.Injection
		out.Injection = &clone
	}
	if data.Examination != nil {
		clone := *data.Examination
		out.Examination = &clone
	}
	if data.Report != nil {
		clone := *data.Report
		out.Report = &clone
	}
	if data.Retrieval != nil {
		clone := *data.Retrieval
		out.Retrieval = &clone
	}
	if data.Archive != nil {
		clone := *data.Archive
		out.Archive = &clone
	}
	return out
}
