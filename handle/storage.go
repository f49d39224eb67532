package handle

// chunkSize is the number of slots allocated at a time
const chunkSize = 256

type slot[T any] struct {
	value   T
	version uint16
	live    bool
}

// chunkedStorage is a growable slot array whose elements never move. Growing appends a
// new chunk instead of reallocating, so pointers into existing slots stay valid.
type chunkedStorage[T any] struct {
	chunks []*[chunkSize]slot[T]
	length int
}

func (s *chunkedStorage[T]) Len() int {
	return s.length
}

func (s *chunkedStorage[T]) Cap() int {
	return len(s.chunks) * chunkSize
}

func (s *chunkedStorage[T]) At(index int) *slot[T] {
	return &s.chunks[index/chunkSize][index%chunkSize]
}

// Push appends a slot and returns its index
func (s *chunkedStorage[T]) Push() int {
	if s.length == s.Cap() {
		s.chunks = append(s.chunks, new([chunkSize]slot[T]))
	}

	index := s.length
	s.length++
	return index
}
