package store

// GetSubnetCursor returns the next /24 octet NetworkCore should try when
// auto-allocating a subnet for a newly created network, or 0 if none has
// been handed out yet.
func (s *Store) GetSubnetCursor() (int, error) {
	v, err := getSimpleGob[int](s, bktState, ksSubnetCursor)
	if err == ErrNotFound {
		return 0, nil
	}
	return v, err
}

func (s *Store) SetSubnetCursor(v int) error {
	return setSimpleGob(s, bktState, ksSubnetCursor, v)
}

// GetCIDCursor returns the next vsock context ID ContainerCore should
// try when launching a new container VM, or 0 if none has been handed
// out yet.
func (s *Store) GetCIDCursor() (uint32, error) {
	v, err := getSimpleGob[uint32](s, bktState, ksCIDCursor)
	if err == ErrNotFound {
		return 0, nil
	}
	return v, err
}

func (s *Store) SetCIDCursor(v uint32) error {
	return setSimpleGob(s, bktState, ksCIDCursor, v)
}
