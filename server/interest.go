package server

// interestSet is an unordered set of descriptors with O(1) add and remove.
// slice exposes the backing array for a single multiplexer wait.
type interestSet struct {
	fds   []int
	index map[int]int
}

func newInterestSet() *interestSet {
	return &interestSet{index: make(map[int]int)}
}

func (s *interestSet) add(fd int) {
	if _, ok := s.index[fd]; ok {
		return
	}
	s.index[fd] = len(s.fds)
	s.fds = append(s.fds, fd)
}

func (s *interestSet) remove(fd int) {
	i, ok := s.index[fd]
	if !ok {
		return
	}
	last := len(s.fds) - 1
	moved := s.fds[last]
	s.fds[i] = moved
	s.index[moved] = i
	s.fds = s.fds[:last]
	delete(s.index, fd)
}

func (s *interestSet) contains(fd int) bool {
	_, ok := s.index[fd]
	return ok
}

func (s *interestSet) len() int { return len(s.fds) }

func (s *interestSet) slice() []int { return s.fds }
