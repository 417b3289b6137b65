package workflow

// RoomID identifies a stage of the fixed patient pathway.
type RoomID string

const (
	RoomRequest      RoomID = "REQUEST"
	RoomAppointment  RoomID = "APPOINTMENT"
	RoomConsultation RoomID = "CONSULTATION"
	RoomInjection    RoomID = "INJECTION"
	RoomExamination  RoomID = "EXAMINATION"
	RoomReport       RoomID = "REPORT"
	RoomRetrieval    RoomID = "RETRIEVAL"
	RoomArchive      RoomID = "ARCHIVE"
)

// Room describes one stage of the patient pathway. NextRoomID is empty for a
// terminal room. AllowedRoleIDs lists the roles permitted to complete the
// room's form; an empty list means any authenticated role.
type Room struct {
	ID             RoomID
	Name           string
	NextRoomID     RoomID
	AllowedRoleIDs []string
	DoneMessage    string
}

// Terminal reports whether the room has no configured successor.
func (r Room) Terminal() bool {
	return r.NextRoomID == ""
}

// AllowsRole reports whether the given role may complete this room.
func (r Room) AllowsRole(roleID string) bool {
	if len(r.AllowedRoleIDs) == 0 {
		return true
	}
	for _, id := range r.AllowedRoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Catalog is the ordered, immutable set of rooms a department operates.
type Catalog struct {
	rooms []Room
	index map[RoomID]int
}

// NewCatalog builds a catalog from the given rooms, preserving order.
func NewCatalog(rooms []Room) *Catalog {
	index := make(map[RoomID]int, len(rooms))
	owned := make([]Room, len(rooms))
	copy(owned, rooms)
	for i, room := range owned {
		index[room.ID] = i
	}
	return &Catalog{rooms: owned, index: index}
}

// DefaultCatalog returns the standard nuclear-medicine pathway: request,
// appointment, consultation, injection, examination, report, retrieval and
// archive, in that order.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Room{
		{
			ID:             RoomRequest,
			Name:           "Demande",
			NextRoomID:     RoomAppointment,
			AllowedRoleIDs: []string{RoleSecretary, RoleAdmin},
			DoneMessage:    "Demande créée",
		},
		{
			ID:             RoomAppointment,
			Name:           "Rendez-vous",
			NextRoomID:     RoomConsultation,
			AllowedRoleIDs: []string{RoleSecretary, RoleAdmin},
			DoneMessage:    "Rendez-vous planifié",
		},
		{
			ID:             RoomConsultation,
			Name:           "Consultation",
			NextRoomID:     RoomInjection,
			AllowedRoleIDs: []string{RolePhysician, RoleAdmin},
			DoneMessage:    "Consultation effectuée",
		},
		{
			ID:             RoomInjection,
			Name:           "Injection",
			NextRoomID:     RoomExamination,
			AllowedRoleIDs: []string{RoleTechnologist, RolePhysician, RoleAdmin},
			DoneMessage:    "Injection réalisée",
		},
		{
			ID:             RoomExamination,
			Name:           "Examen",
			NextRoomID:     RoomReport,
			AllowedRoleIDs: []string{RoleTechnologist, RolePhysician, RoleAdmin},
			DoneMessage:    "Examen réalisé",
		},
		{
			ID:             RoomReport,
			Name:           "Compte rendu",
			NextRoomID:     RoomRetrieval,
			AllowedRoleIDs: []string{RolePhysician, RoleAdmin},
			DoneMessage:    "Compte rendu rédigé",
		},
		{
			ID:             RoomRetrieval,
			Name:           "Retrait des résultats",
			NextRoomID:     RoomArchive,
			AllowedRoleIDs: []string{RoleSecretary, RoleAdmin},
			DoneMessage:    "Résultats remis au patient",
		},
		{
			ID:             RoomArchive,
			Name:           "Archive",
			AllowedRoleIDs: []string{RoleSecretary, RoleAdmin},
			DoneMessage:    "Dossier archivé",
		},
	})
}

// Well-known role identifiers referenced by the default catalog.
const (
	RoleAdmin        = "admin"
	RolePhysician    = "physician"
	RoleTechnologist = "technologist"
	RoleSecretary    = "secretary"
)

// Room returns the catalog entry for the given identifier.
func (c *Catalog) Room(id RoomID) (Room, bool) {
	if c == nil {
		return Room{}, false
	}
	i, ok := c.index[id]
	if !ok {
		return Room{}, false
	}
	return c.rooms[i], true
}

// Rooms returns the catalog entries in pathway order.
func (c *Catalog) Rooms() []Room {
	if c == nil {
		return nil
	}
	out := make([]Room, len(c.rooms))
	copy(out, c.rooms)
	return out
}

// First returns the intake room of the pathway.
func (c *Catalog) First() Room {
	if c == nil || len(c.rooms) == 0 {
		return Room{}
	}
	return c.rooms[0]
}
