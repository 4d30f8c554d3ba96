package editor

// Command is a reversible graph edit.
type Command interface {
	CanExecute() bool
	Execute()
	Undo()
	Redo()
}

// CommandStack keeps the undo and redo history of executed commands.
// It is not safe for concurrent use.
type CommandStack struct {
	undo []Command
	redo []Command
}

// Execute runs c when it can execute and pushes it onto the undo history.
// The redo history is dropped.
func (s *CommandStack) Execute(c Command) bool {
	if !c.CanExecute() {
		return false
	}
	c.Execute()
	s.undo = append(s.undo, c)
	s.redo = nil
	return true
}

// Undo reverts the most recent command.
func (s *CommandStack) Undo() bool {
	if len(s.undo) == 0 {
		return false
	}
	c := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	c.Undo()
	s.redo = append(s.redo, c)
	return true
}

// Redo re-applies the most recently undone command.
func (s *CommandStack) Redo() bool {
	if len(s.redo) == 0 {
		return false
	}
	c := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	c.Redo()
	s.undo = append(s.undo, c)
	return true
}

func (s *CommandStack) CanUndo() bool { return len(s.undo) > 0 }
func (s *CommandStack) CanRedo() bool { return len(s.redo) > 0 }

// Flush forgets the whole history. Edits that bypass the stack call it, since
// recorded commands no longer describe the graph they would replay on.
func (s *CommandStack) Flush() {
	s.undo = nil
	s.redo = nil
}
